package pktbuf

import (
	"fmt"
	"strconv"
)

// Type tags the protocol a snip carries. The buffer never interprets it;
// protocol code owns the tag space and may define its own values above
// TypeUser.
type Type int16

const (
	TypeUndef Type = iota
	TypeIOVec      // scatter/gather descriptor built by GetIOVec
	TypeNetif      // link-layer metadata
	TypeSixLoWPAN
	TypeIPv6
	TypeIPv6Ext
	TypeICMPv6
	TypeUDP
	TypeTCP
	TypeCoAP

	// TypeUser is the first value free for application use.
	TypeUser Type = 0x100
)

var typeNames = map[Type]string{
	TypeUndef:     "undef",
	TypeIOVec:     "iovec",
	TypeNetif:     "netif",
	TypeSixLoWPAN: "6lowpan",
	TypeIPv6:      "ipv6",
	TypeIPv6Ext:   "ipv6-ext",
	TypeICMPv6:    "icmpv6",
	TypeUDP:       "udp",
	TypeTCP:       "tcp",
	TypeCoAP:      "coap",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int16(t))
}

// ParseType resolves a name produced by Type.String or a plain number.
func ParseType(s string) (Type, bool) {
	for t, name := range typeNames {
		if name == s {
			return t, true
		}
	}
	n, err := strconv.ParseInt(s, 0, 16)
	if err != nil {
		return TypeUndef, false
	}
	return Type(n), true
}
