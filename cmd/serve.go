package cmd

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/smartsimpoints/smartsim/sim/trace"
)

var (
	serveLogPath string // Region log to inspect
	serveAddr    string // Listen address
)

// inspector serves a finalized region log read-only over HTTP.
type inspector struct {
	records []trace.RegionRecord
	summary *trace.RegionSummary
}

func newInspector(records []trace.RegionRecord) *inspector {
	return &inspector{records: records, summary: trace.Summarize(records)}
}

// routes returns the inspector's router:
//
//	GET /regions[?mode=Detailed|Fast-Forward]
//	GET /regions/{id}
//	GET /representatives/{id}/regions
//	GET /summary
func (in *inspector) routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/regions", in.listRegions).Methods(http.MethodGet)
	r.HandleFunc("/regions/{id:[0-9]+}", in.getRegion).Methods(http.MethodGet)
	r.HandleFunc("/representatives/{id:[0-9]+}/regions", in.replaysOf).Methods(http.MethodGet)
	r.HandleFunc("/summary", in.getSummary).Methods(http.MethodGet)
	return r
}

func (in *inspector) listRegions(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("mode")
	if filter == "" {
		writeJSON(w, http.StatusOK, in.records)
		return
	}
	var mode trace.Mode
	if err := mode.UnmarshalText([]byte(filter)); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	out := make([]trace.RegionRecord, 0)
	for _, rec := range in.records {
		if rec.Mode == mode {
			out = append(out, rec)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (in *inspector) getRegion(w http.ResponseWriter, r *http.Request) {
	id, ok := regionIDVar(w, r)
	if !ok {
		return
	}
	for _, rec := range in.records {
		if rec.RegionID == id {
			writeJSON(w, http.StatusOK, rec)
			return
		}
	}
	http.NotFound(w, r)
}

func (in *inspector) replaysOf(w http.ResponseWriter, r *http.Request) {
	id, ok := regionIDVar(w, r)
	if !ok {
		return
	}
	out := make([]uint64, 0)
	for _, rec := range in.records {
		if rec.Mode == trace.ModeFastForward && rec.RepresentativeID == id {
			out = append(out, rec.RegionID)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (in *inspector) getSummary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, in.summary)
}

func regionIDVar(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "region id out of range", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Warnf("writing response: %v", err)
	}
}

// serveCmd exposes a region log over HTTP
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a region log read-only over HTTP",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel(logLevel)
		if serveLogPath == "" {
			logrus.Fatalf("--region-log is required")
		}
		f, err := os.Open(serveLogPath)
		if err != nil {
			logrus.Fatalf("opening region log: %v", err)
		}
		records, err := trace.ReadRegionLog(f)
		_ = f.Close()
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		srv := &http.Server{
			Addr:              serveAddr,
			Handler:           newInspector(records).routes(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		logrus.Infof("serving %d regions from %s on %s", len(records), serveLogPath, serveAddr)
		if err := srv.ListenAndServe(); err != nil {
			logrus.Fatalf("server: %v", err)
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveLogPath, "region-log", "", "Region log to serve (JSON Lines)")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "localhost:8080", "Listen address")
}
