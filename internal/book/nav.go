package book

// NavLeaf is a single navigation entry pointing at a rendered page.
type NavLeaf struct {
	Title string
	Href  string
}

// NavGroup mirrors a manifest part: a title plus its leaves in chapter order.
type NavGroup struct {
	Title  string
	Leaves []NavLeaf
}

// NavTree is the full navigation structure for the rendered site. Group and
// leaf order is byte-for-byte determined by manifest order; nothing here
// sorts, dedupes, or filters.
type NavTree struct {
	Groups []NavGroup
}

// BuildNav constructs the navigation tree from the book model.
func BuildNav(b *Book) *NavTree {
	tree := &NavTree{}
	for _, p := range b.Parts {
		group := NavGroup{Title: p.Title}
		for _, c := range p.Chapters {
			group.Leaves = append(group.Leaves, NavLeaf{Title: c.Title, Href: c.OutputPath})
		}
		tree.Groups = append(tree.Groups, group)
	}
	return tree
}
