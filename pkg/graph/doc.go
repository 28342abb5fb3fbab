// Package graph defines the material node graph for matgraph.
// A graph is a set of typed nodes whose pins are joined by links; the
// single Material root node gathers the finished surface channels.
package graph
