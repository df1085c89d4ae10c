/*
package lib contains the configuration, checking, and driver code shared by
advect's command line tool. Almost all of the heavy lifting is done by lib/'s
subpackages.
*/
package lib

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"unsafe"

	"github.com/sirupsen/logrus"
)

// Version is the version of the software.
const Version = "0.1.0"

// SystemByteOrder returns the byte order of the machine advect is running on.
func SystemByteOrder() binary.ByteOrder {
	b := [2]byte{}
	*(*uint16)(unsafe.Pointer(&b[0])) = uint16(0x0001)
	if b[0] == 0 {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// ParseByteOrder converts "little", "big", or "native" to a byte order.
func ParseByteOrder(s string) (binary.ByteOrder, error) {
	switch strings.ToLower(s) {
	case "little", "":
		return binary.LittleEndian, nil
	case "big":
		return binary.BigEndian, nil
	case "native", "system":
		return SystemByteOrder(), nil
	}
	return nil, fmt.Errorf("The byte order '%s' is not one of 'little', "+
		"'big', or 'native'.", s)
}

// NewLogger creates a text logger writing to w at the named level.
func NewLogger(level string, w io.Writer) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(lvl)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log, nil
}
