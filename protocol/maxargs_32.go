//go:build rigelnet_maxargs32

package protocol

const MaxArgs = 32
