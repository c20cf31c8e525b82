// Package sock implements the sock stressor: a loopback TCP client/server
// pair exchanging fixed-size messages as fast as the transport allows.
package sock

import (
	"net"
	"time"

	"github.com/stressgo/stressgo/internal/registry"
)

// Descriptor registers the sock stressor under ClassNetwork.
var Descriptor = registry.Descriptor{
	Name:  "sock",
	Class: registry.ClassNetwork,
	Entry: entry,
	Metrics: []registry.MetricDeclaration{
		{ID: metricMsgsPerSec, Label: "sock_msgs_per_sec", Combine: registry.CombineArithmeticMean},
	},
}

const (
	metricMsgsPerSec = 0
	msgSize          = 1024
)

func entry(args registry.EntryArgs) (registry.ExitStatus, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return registry.StatusNoResource, err
	}
	defer ln.Close()

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, msgSize)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
			if _, err := conn.Write(buf); err != nil {
				return
			}
		}
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		return registry.StatusNoResource, err
	}
	defer conn.Close()

	msg := make([]byte, msgSize)
	reply := make([]byte, msgSize)

	start := time.Now()
	var ops uint64
	for args.Continue() {
		if _, err := conn.Write(msg); err != nil {
			return registry.StatusFailure, err
		}
		if _, err := conn.Read(reply); err != nil {
			return registry.StatusFailure, err
		}
		ops++
		args.BogoInc(1)
		if args.MaxOps > 0 && ops >= args.MaxOps {
			break
		}
	}

	elapsed := time.Since(start).Seconds()
	if elapsed > 0 {
		args.MetricSet(metricMsgsPerSec, float64(ops)/elapsed, registry.CombineArithmeticMean, "sock_msgs_per_sec")
	}
	return registry.StatusSuccess, nil
}
