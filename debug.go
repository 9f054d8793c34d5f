package vfields

import (
	"encoding/json"
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"www.velocidex.com/golang/vfilter"
)

func Debug(arg interface{}) {
	spew.Dump(arg)
}

func JsonDump(v interface{}) {
	fmt.Println(StringIndent(v))
}

func StringIndent(v interface{}) string {
	result, err := json.MarshalIndent(v, "", " ")
	if err != nil {
		panic(err)
	}
	return string(result)
}

// ScopeDebug logs through the scope when DEBUG_VFIELDS is set in it.
func ScopeDebug(scope vfilter.Scope, fmt string, args ...interface{}) {
	if scope == nil {
		return
	}
	value, pres := scope.Resolve("DEBUG_VFIELDS")
	if pres && scope.Bool(value) {
		scope.Log(fmt, args...)
	}
}

// DebugTree renders the fields generated so far, one per line, with
// their address and size in bits.
func DebugTree(root *FieldSet) string {
	result := ""
	var walk func(set *FieldSet, indent string)
	walk = func(set *FieldSet, indent string) {
		for _, child := range set.children {
			size, _ := child.Size()
			result += fmt.Sprintf("%v%v @%v +%v %v\n", indent, child.Name(),
				child.AbsoluteAddress(), size, child.Display())
			nested, ok := child.(*FieldSet)
			if ok {
				walk(nested, indent+"  ")
			}
		}
	}
	walk(root, "")
	return result
}
