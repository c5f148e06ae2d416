package utils

import gonanoid "github.com/matoous/go-nanoid/v2"

// Alphanumeric only, so IDs can be used in routes and object keys unescaped.
const nanoidAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NanoidSize is the length of every case, attachment, event and request ID.
var NanoidSize = 32

func NanoID() string {
	return NanoIDSize(NanoidSize)
}

func NanoIDSize(size int) string {
	if size <= 0 {
		size = NanoidSize
	}

	return gonanoid.MustGenerate(nanoidAlphabet, size)
}
