package vfields

import "www.velocidex.com/golang/vfilter"

func MakeScope() vfilter.Scope {
	result := vfilter.NewScope()
	result.AddProtocolImpl(
		&FieldSetAssociative{}, &FieldSetIterator{},
	)

	return result
}
