//go:build rigelnet_maxargs8

package protocol

const MaxArgs = 8
