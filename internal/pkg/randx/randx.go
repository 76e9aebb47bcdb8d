/*
Package randx provides functions for generating cryptographically secure identifiers.

It is used to issue device ids to browsers that connect without one and to tag tab connections.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))

	// DeviceIDLength is the length of a generated device id (about 131 bits of entropy).
	DeviceIDLength = 22
)

// DeviceID generates a Base62 device id using crypto/rand.
func DeviceID() (string, error) {
	result := make([]byte, DeviceIDLength)

	for i := 0; i < DeviceIDLength; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number for device id: %w", err)
		}

		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}

// TabID generates a UUID v4 identifying one tab connection.
func TabID() string {
	return uuid.New().String()
}
