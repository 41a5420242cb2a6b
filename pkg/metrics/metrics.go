// Package metrics provides functions to record RPC call metrics. It is a
// very thin layer over structured logging, writing one CSV line per call to
// a local file for simple deployments that don't run a metrics backend.
package metrics

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tzrikka/xdg"
)

const (
	// DefaultMetricsFileIn and DefaultMetricsFileOut are file name formats,
	// with a single %s placeholder for the date (one file per day).
	DefaultMetricsFileIn  = "metrics/nexrpc_in_%s.csv"
	DefaultMetricsFileOut = "metrics/nexrpc_out_%s.csv"

	fileFlags = os.O_APPEND | os.O_CREATE | os.O_WRONLY
	filePerms = xdg.NewFilePermissions
)

var (
	muIn  sync.Mutex
	muOut sync.Mutex
)

// CountInboundCall records a call dispatched by an [rpcserver.Server].
// err is nil for a successful dispatch, and the ERROR response's cause
// otherwise.
func CountInboundCall(l zerolog.Logger, t time.Time, serviceID, methodID uint64, err error) {
	muIn.Lock()
	defer muIn.Unlock()

	record := []string{
		t.Format(time.RFC3339),
		strconv.FormatUint(serviceID, 10),
		strconv.FormatUint(methodID, 10),
		errString(err),
	}
	if err := appendToCSVFile(DefaultMetricsFileIn, t, record); err != nil {
		l.Error().Err(err).
			Uint64("service_id", serviceID).Uint64("method_id", methodID).
			Msg("metrics: failed to record inbound call")
	}
}

// CountOutboundCall records a call issued by an [rpcclient.Client].
// err is nil for a successful call, and the call's returned error otherwise.
func CountOutboundCall(l zerolog.Logger, t time.Time, methodID uint64, err error) {
	muOut.Lock()
	defer muOut.Unlock()

	record := []string{t.Format(time.RFC3339), strconv.FormatUint(methodID, 10), errString(err)}
	if err := appendToCSVFile(DefaultMetricsFileOut, t, record); err != nil {
		l.Error().Err(err).Uint64("method_id", methodID).Msg("metrics: failed to record outbound call")
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func appendToCSVFile(filename string, t time.Time, record []string) error {
	filename = fmt.Sprintf(filename, t.Format(time.DateOnly))
	f, err := os.OpenFile(filename, fileFlags, filePerms) //gosec:disable G304 // Hardcoded path.
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(record); err != nil {
		return err
	}

	w.Flush()
	return w.Error()
}
