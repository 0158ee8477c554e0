package catalog

import (
	"sort"
	"strings"

	"priskombo/internal/models"
)

// BuildTree groups a flat category list into roots and their children.
// Categories whose parent is unknown are promoted to roots.
func BuildTree(categories []models.Category) []models.CategoryNode {
	known := make(map[int]bool, len(categories))
	for _, c := range categories {
		known[c.ID] = true
	}

	children := make(map[int][]models.Category)
	var roots []models.Category
	for _, c := range categories {
		if c.IsRoot() || !known[*c.ParentID] {
			roots = append(roots, c)
			continue
		}
		children[*c.ParentID] = append(children[*c.ParentID], c)
	}

	sortByName(roots)
	tree := make([]models.CategoryNode, 0, len(roots))
	for _, r := range roots {
		kids := children[r.ID]
		if kids == nil {
			kids = []models.Category{}
		}
		sortByName(kids)
		tree = append(tree, models.CategoryNode{Category: r, Children: kids})
	}
	return tree
}

// descendantIDs returns id followed by the ids of its direct children.
func descendantIDs(categories []models.Category, id int) []int {
	ids := []int{id}
	for _, c := range categories {
		if c.ParentID != nil && *c.ParentID == id {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

func sortByName(cs []models.Category) {
	sort.SliceStable(cs, func(i, j int) bool {
		return strings.ToLower(cs[i].Name) < strings.ToLower(cs[j].Name)
	})
}
