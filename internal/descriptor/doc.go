// Package descriptor defines the target descriptor: what gets built, for
// which platforms, under which tags and labels, and where it is published.
//
// Descriptors are declared in a YAML file holding one or more named targets.
// A target is validated when it is selected, so an invalid target is rejected
// before any builder, registry or build engine is contacted. Validation
// normalizes platform identifiers (an omitted OS means linux), checks that
// every tag is a fully-qualified registry/namespace/image:tag reference, and
// requires at least one tag when the output is pushed to a registry.
//
// Label values are static except for the "@timestamp" placeholder, which is
// resolved to the build start time by [Target.ResolveLabels].
//
// Example usage:
//
//	file, err := descriptor.Load("forgepack.yaml", true)
//	if err != nil {
//	    return err
//	}
//
//	target, err := file.Select("", descriptor.Overrides{Tags: tags})
//	if err != nil {
//	    return err // wraps descriptor.ErrDescriptorInvalid
//	}
package descriptor
