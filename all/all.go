// Package all registers every supported ecosystem adapter.
//
// Import for side effects:
//
//	import _ "github.com/git-pkgs/slopguard/all"
package all

import (
	_ "github.com/git-pkgs/slopguard/internal/gomod"
	_ "github.com/git-pkgs/slopguard/internal/pypi"
	_ "github.com/git-pkgs/slopguard/internal/rubygems"
)
