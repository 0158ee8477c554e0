package models

type Category struct {
	ID         int    `json:"id" bson:"id"`
	Name       string `json:"name" bson:"name"`
	Slug       string `json:"slug" bson:"slug"`
	ParentID   *int   `json:"parent_id,omitempty" bson:"parent_id,omitempty"`
	ComingSoon bool   `json:"coming_soon" bson:"coming_soon"`
}

// IsRoot reports whether the category sits at the top of the tree.
func (c Category) IsRoot() bool {
	return c.ParentID == nil
}

// CategoryNode is a root category with its sub-categories.
type CategoryNode struct {
	Category
	Children []Category `json:"children"`
}
