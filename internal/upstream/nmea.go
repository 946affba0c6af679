package upstream

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
)

const defaultBaudRate = 9600

// NMEASensor is a movement sensor fed by NMEA 0183 sentences, usually from a
// GPS receiver on a serial port. Only RMC and GGA sentences reporting a valid
// fix update the reading.
type NMEASensor struct {
	source io.ReadCloser
	latest *latest
	logger *slog.Logger
	now    func() time.Time

	mu  sync.Mutex
	fix nmeaFix

	done      chan struct{}
	closeOnce sync.Once
}

type nmeaFix struct {
	latitude   float64
	longitude  float64
	speedKnots float64
	courseDeg  float64
	quality    string
	satellites int64
	altitudeM  float64
}

// OpenNMEASerial opens a serial port at baud (9600 when zero) and starts
// parsing it.
func OpenNMEASerial(port string, baud uint, logger *slog.Logger) (*NMEASensor, error) {
	if baud == 0 {
		baud = defaultBaudRate
	}
	rwc, err := serial.Open(serial.OpenOptions{
		PortName:              port,
		BaudRate:              baud,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("nmea serial port opened", "port", port, "baud", baud)
	return NewNMEASensor(rwc, logger), nil
}

// NewNMEASensor parses sentences from source until it ends or Close is called.
func NewNMEASensor(source io.ReadCloser, logger *slog.Logger) *NMEASensor {
	s := &NMEASensor{
		source: source,
		latest: newLatest(),
		logger: logger,
		now:    time.Now,
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *NMEASensor) run() {
	defer close(s.done)

	scanner := bufio.NewScanner(s.source)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "$") {
			continue
		}
		sentence, err := nmea.Parse(line)
		if err != nil {
			// partial sentences are common right after the port opens
			s.logger.Debug("nmea parse error", "error", err, "line", line)
			continue
		}
		s.apply(sentence)
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	s.logger.Info("nmea source ended", "error", err)
	s.latest.end(err)
}

func (s *NMEASensor) apply(sentence nmea.Sentence) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch m := sentence.(type) {
	case nmea.RMC:
		if m.Validity != nmea.ValidRMC {
			return
		}
		s.fix.latitude = m.Latitude
		s.fix.longitude = m.Longitude
		s.fix.speedKnots = m.Speed
		s.fix.courseDeg = m.Course
	case nmea.GGA:
		if m.FixQuality == nmea.Invalid {
			return
		}
		s.fix.latitude = m.Latitude
		s.fix.longitude = m.Longitude
		s.fix.quality = m.FixQuality
		s.fix.satellites = m.NumSatellites
		s.fix.altitudeM = m.Altitude
	default:
		return
	}

	s.latest.set(map[string]any{
		"position": map[string]any{
			"latitude":  s.fix.latitude,
			"longitude": s.fix.longitude,
		},
		"speed_knots": s.fix.speedKnots,
		"course_deg":  s.fix.courseDeg,
		"fix_quality": s.fix.quality,
		"satellites":  s.fix.satellites,
		"altitude_m":  s.fix.altitudeM,
		"updated":     s.now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *NMEASensor) Readings(ctx context.Context) (map[string]any, error) {
	return s.latest.get(ctx)
}

// Close closes the source and waits for the parser to stop.
func (s *NMEASensor) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.source.Close()
		<-s.done
	})
	return err
}
