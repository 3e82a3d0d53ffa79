package models

import "strings"

const (
	// RouteSeparator joins a parent task name and a group index into a route name.
	RouteSeparator = "~"
	// NameSeparator joins a route name and a base task name.
	NameSeparator = "-"
)

// BuildRoute returns the route name of sub-group groupIndex under parentName. Top-level
// tasks have an empty route.
func BuildRoute(parentName, groupIndex string) string {
	if parentName == "" {
		return ""
	}

	return parentName + RouteSeparator + groupIndex
}

// BuildName returns the graph-unique name of baseName instantiated under routeName.
func BuildName(routeName, baseName string) string {
	if routeName == "" {
		return baseName
	}

	return routeName + NameSeparator + baseName
}

// RouteName extracts the route part of a task name.
func RouteName(name string) string {
	route, _ := splitName(name)

	return route
}

// BaseName extracts the base task name of a task name.
func BaseName(name string) string {
	_, base := splitName(name)

	return base
}

// ParentName returns the name of the branch task that owns route.
func ParentName(route string) string {
	i := strings.LastIndex(route, RouteSeparator)
	if i < 0 {
		return ""
	}

	return route[:i]
}

// GroupIndex returns the sub-group index encoded in route.
func GroupIndex(route string) string {
	i := strings.LastIndex(route, RouteSeparator)
	if i < 0 {
		return ""
	}

	return route[i+len(RouteSeparator):]
}

// IsAncestor reports whether ancestorName is a branch task somewhere above name.
func IsAncestor(ancestorName, name string) bool {
	for route := RouteName(name); route != ""; route = RouteName(ParentName(route)) {
		if ParentName(route) == ancestorName {
			return true
		}
	}

	return false
}

// RootName returns the top-level ancestor of name, or name itself when it is top-level.
func RootName(name string) string {
	for {
		route := RouteName(name)
		if route == "" {
			return name
		}

		name = ParentName(route)
	}
}

func splitName(name string) (string, string) {
	// The group index never contains the name separator, so the first separator after the
	// last route separator ends the route.
	r := strings.LastIndex(name, RouteSeparator)
	if r < 0 {
		return "", name
	}

	n := strings.Index(name[r:], NameSeparator)
	if n < 0 {
		return "", name
	}

	return name[:r+n], name[r+n+len(NameSeparator):]
}
