package signal

import (
	_ "unsafe" // for go:linkname
)

// github.com/grailbio/hts/sam pull-linknames sync.fastrand, which was removed
// from the standard library in newer Go releases. Re-provide that symbol here,
// backed by runtime.fastrand (the function sync.fastrand used to alias), so
// binaries that link hts/sam still resolve.

//go:linkname runtimeFastrand runtime.fastrand
func runtimeFastrand() uint32

//go:linkname syncFastrand sync.fastrand
//go:nosplit
func syncFastrand() uint32 { return runtimeFastrand() }
