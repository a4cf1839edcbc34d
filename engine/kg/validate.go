package kg

// ValidateNode reports whether a node carries a present identifier and a
// non-empty type label.
func ValidateNode(n Node) bool {
	return validID(n.ID) && n.Type != ""
}

// ValidateRelationship reports whether both endpoints are valid nodes and
// the relationship has a non-empty type label.
func ValidateRelationship(r Relationship) bool {
	return ValidateNode(r.Subject) && ValidateNode(r.Object) && r.Type != ""
}

// validID accepts any string or integer identifier, including "". Only
// the zero ID is absent.
func validID(id ID) bool {
	return id.IsString() || id.IsInt()
}
