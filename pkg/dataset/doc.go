// Package dataset implements labeled multidimensional tables.
//
// A Dataset is a set of named variables sharing a common pool of named
// dimensions. Variables are either data variables or coordinates; a coordinate
// with a single dimension of its own name is an index coordinate and takes
// part in alignment when two datasets are combined.
//
// Every operation returns a new Dataset and leaves its receiver untouched:
//
//	ds := dataset.MustNew(
//	    dataset.WithDataVar("a", dataset.IntVar("x", 1, 2, 3)),
//	)
//	second, err := ds.Isel(map[string]dataset.Indexer{"x": dataset.At(1)}, dataset.Raise)
//	total, err := ds.Reduce(dataset.ReduceSum, dataset.ReduceOptions{})
//	scaled, err := ds.BinaryScalar(dataset.OpMul, dataset.IntScalar(5), false)
package dataset
