package redissentinel

import (
	"net"
	"strconv"
	"strings"

	"github.com/joomcode/sentinelpool/rediserror"
)

// SwitchMasterChannel is a channel sentinels publish failover notifications to.
const SwitchMasterChannel = "+switch-master"

// SwitchMaster is a parsed "+switch-master" notification:
// "<group> <old-ip> <old-port> <new-ip> <new-port>".
type SwitchMaster struct {
	Group   string
	OldHost string
	OldPort int
	NewHost string
	NewPort int
}

// From returns old master address.
func (s SwitchMaster) From() string {
	return net.JoinHostPort(s.OldHost, strconv.Itoa(s.OldPort))
}

// To returns new master address.
func (s SwitchMaster) To() string {
	return net.JoinHostPort(s.NewHost, strconv.Itoa(s.NewPort))
}

// ParseSwitchMaster parses notification payload.
func ParseSwitchMaster(payload string) (SwitchMaster, error) {
	parts := strings.Fields(payload)
	if len(parts) != 5 {
		return SwitchMaster{}, rediserror.ErrMalformedMessage.New("expected 5 fields, got %d", len(parts)).
			WithProperty(rediserror.EKResponse, payload)
	}
	oldPort, err1 := parsePort(parts[2])
	newPort, err2 := parsePort(parts[4])
	if err1 != nil || err2 != nil {
		return SwitchMaster{}, rediserror.ErrMalformedMessage.New("port is not a number").
			WithProperty(rediserror.EKResponse, payload)
	}
	return SwitchMaster{
		Group:   parts[0],
		OldHost: parts[1],
		OldPort: oldPort,
		NewHost: parts[3],
		NewPort: newPort,
	}, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err == nil && (port <= 0 || port > 65535) {
		err = strconv.ErrRange
	}
	return port, err
}
