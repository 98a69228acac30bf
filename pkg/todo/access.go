package todo

// CanAccess reports whether identity may view the list and mutate its tasks.
func CanAccess(list *List, identity string) bool {
	if list == nil || identity == "" {
		return false
	}
	return IsOwner(list, identity) || list.SharedWith.Contains(identity)
}

// IsOwner reports whether identity created the list.
func IsOwner(list *List, identity string) bool {
	return list != nil && identity != "" && list.Owner == identity
}
