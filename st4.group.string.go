package st4

// FromString creates a group from an in-memory `.stg` source. The
// source is parsed eagerly; compile errors inside individual templates
// are reported to the listener without failing the whole group.
func FromString(src string, opts ...GroupOption) *Group {
	g := NewGroup(opts...)
	g.name = StringGroupName
	g.loadGroupSource(src, StringGroupName, "", RootPrefix)
	return g
}
