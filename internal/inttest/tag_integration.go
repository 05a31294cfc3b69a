//go:build integration

package inttest

const skip = false
