// vpscore-sim drives the fusion core with a synthetic visual-fix
// source so the wire encoders and metrics can be exercised without a
// real image-matching pipeline or flight controller attached. It does
// not open a serial port: encoded NMEA/MSP frames are logged, not
// transmitted.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/asgard/vps-core/internal/clock"
	"github.com/asgard/vps-core/internal/fusion"
	"github.com/asgard/vps-core/internal/fusion/deadreckoning"
	"github.com/asgard/vps-core/internal/fusion/ekf"
	"github.com/asgard/vps-core/internal/geodesy"
	"github.com/asgard/vps-core/internal/geofence"
	"github.com/asgard/vps-core/internal/telemetry"
	"github.com/asgard/vps-core/pkg/logging"
)

const version = "0.1.0"

var (
	metricsPort  = flag.Int("metrics-port", 9094, "Prometheus /metrics and /health port")
	tickHz       = flag.Float64("rate-hz", 3.0, "simulated tick rate")
	startLat     = flag.Float64("start-lat", 37.0, "simulated start latitude")
	startLon     = flag.Float64("start-lon", -122.0, "simulated start longitude")
	headingDeg   = flag.Float64("heading-deg", 0.0, "simulated ground track, degrees from north")
	speedMPS     = flag.Float64("speed-mps", 8.0, "simulated ground speed in m/s")
	dropoutEvery = flag.Int("dropout-every", 0, "simulate a missed visual fix every N ticks (0 disables)")
	fenceRadiusM = flag.Float64("fence-radius-m", 0, "enable a circular geofence of this radius around the start point (0 disables)")
	logLevel     = flag.String("log-level", "info", "debug|info|warn|error")
)

// app holds the wired subsystems for the simulated run.
type app struct {
	logger *logrus.Logger
	engine *fusion.Fusion
	server *http.Server
	clock  clock.Source
}

func main() {
	flag.Parse()
	printBanner()

	a := &app{logger: logging.New(logging.Level(*logLevel), os.Stdout)}
	a.initialize()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go a.serveHTTP()
	go a.runSimulation(ctx)

	<-sigCh
	a.logger.Info("shutdown signal received")
	a.shutdown()
}

func (a *app) initialize() {
	var fence *geofence.Geofence
	if *fenceRadiusM > 0 {
		fence = geofence.NewCircleFence(geodesy.GeoPoint{Lat: *startLat, Lon: *startLon}, *fenceRadiusM/1000.0, 0)
		a.logger.WithField("radius_m", *fenceRadiusM).Info("geofence enabled")
	}

	a.engine = fusion.New(ekf.DefaultConfig(), deadreckoning.DefaultConfig(), fence, a.logger)
	a.clock = clock.System{}

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", *metricsPort),
		Handler: a.routes(),
	}

	a.logger.WithFields(logrus.Fields{
		"rate_hz":      *tickHz,
		"metrics_port": *metricsPort,
	}).Info("vpscore-sim initialized")
}

func (a *app) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)
	mux.HandleFunc("/status", a.statusHandler)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (a *app) serveHTTP() {
	a.logger.WithField("addr", a.server.Addr).Info("serving /health, /status, and /metrics")
	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		a.logger.WithError(err).Error("metrics server stopped unexpectedly")
	}
}

func (a *app) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("metrics server shutdown error")
	}
	a.logger.Info("vpscore-sim stopped")
}

// runSimulation walks a straight-line synthetic track at the
// configured heading and speed, feeding it to the fusion engine as if
// it were a visual-positioning fix, then encoding the resulting
// estimate to NMEA and MSP frames.
func (a *app) runSimulation(ctx context.Context) {
	interval := time.Duration(float64(time.Second) / *tickHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	headingRad := *headingDeg * math.Pi / 180.0
	const metersPerDegLat = 111320.0

	lat, lon := *startLat, *startLon
	var elapsed float64
	tick := 0

	ggaBuf := make([]byte, 256)
	rmcBuf := make([]byte, 256)
	mspBuf := make([]byte, telemetry.MSPFrameSize)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick++
			elapsed += interval.Seconds()

			dLat := (*speedMPS * math.Cos(headingRad) / metersPerDegLat) * interval.Seconds()
			dLon := (*speedMPS * math.Sin(headingRad) / (metersPerDegLat * math.Cos(lat*math.Pi/180.0))) * interval.Seconds()
			lat += dLat
			lon += dLon

			var visual *geodesy.GeoPoint
			if *dropoutEvery == 0 || tick%*dropoutEvery != 0 {
				visual = &geodesy.GeoPoint{Lat: lat, Lon: lon}
			}

			out := a.engine.Update(visual, 1.0, elapsed)
			a.emit(out, a.clock.Now(), ggaBuf, rmcBuf, mspBuf)
		}
	}
}

func (a *app) emit(out fusion.FusionOutput, now time.Time, ggaBuf, rmcBuf, mspBuf []byte) {
	if !out.HasPosition {
		a.logger.WithField("source", out.Source.String()).Debug("no position this tick")
		return
	}

	n, err := telemetry.EncodeGGA(ggaBuf, telemetry.GGAFields{
		Position:   out.Position,
		FixQuality: telemetry.FixQuality(out.FixQuality),
		HDOP:       out.HDOP,
		AltitudeM:  0,
		Hour:       now.Hour(), Min: now.Minute(), Sec: now.Second(), Centis: now.Nanosecond() / 1e7,
	})
	if err != nil {
		a.logger.WithError(err).Warn("GGA encode failed")
	}

	rn, err := telemetry.EncodeRMC(rmcBuf, telemetry.RMCFields{
		Position:   out.Position,
		Active:     out.FixQuality != fusion.QualityNone,
		SpeedMPS:   out.SpeedMPS,
		HeadingDeg: out.HeadingDeg,
		Hour:       now.Hour(), Min: now.Minute(), Sec: now.Second(), Centis: now.Nanosecond() / 1e7,
		Day: now.Day(), Month: int(now.Month()), Year: now.Year(),
	})
	if err != nil {
		a.logger.WithError(err).Warn("RMC encode failed")
	}

	mn, err := telemetry.EncodeSetRawGPS(mspBuf, telemetry.GPSFrame{
		FixType:      2,
		NumSat:       8,
		LatE7:        int32(out.Position.Lat * 1e7),
		LonE7:        int32(out.Position.Lon * 1e7),
		AltitudeM:    0,
		GroundSpeed:  uint16(out.SpeedMPS * 100),
		GroundCourse: uint16(out.HeadingDeg * 10),
		HDOPx100:     uint16(out.HDOP * 100),
	})
	if err != nil {
		a.logger.WithError(err).Warn("MSP encode failed")
	}

	a.logger.WithFields(logrus.Fields{
		"source":    out.Source.String(),
		"lat":       out.Position.Lat,
		"lon":       out.Position.Lon,
		"hdop":      out.HDOP,
		"speed_mps": out.SpeedMPS,
		"gga_bytes": n,
		"rmc_bytes": rn,
		"msp_bytes": mn,
	}).Debug("tick encoded")
}

func (a *app) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","service":"vpscore-sim","version":%q}`, version)
}

func (a *app) statusHandler(w http.ResponseWriter, r *http.Request) {
	rec := a.engine.LastDiagnostic()
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"tick_id":%q,"source":%q,"has_position":%t,"lat":%f,"lon":%f,"hdop":%f,"speed_mps":%f}`,
		rec.TickID.String(), rec.Output.Source.String(), rec.Output.HasPosition,
		rec.Output.Position.Lat, rec.Output.Position.Lon, rec.Output.HDOP, rec.Output.SpeedMPS)
}

func printBanner() {
	fmt.Printf("vpscore-sim v%s -- synthetic visual-fix driver for the VPS fusion core\n", version)
}
