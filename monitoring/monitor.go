// Package monitoring turns a running simulation into a small web server so
// that the state of the bus components can be inspected from outside.
package monitoring

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"

	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"

	"github.com/openverif/apbvip/sim"
)

// A StatusReporter is a component that can report a point-in-time view of
// its state.
type StatusReporter interface {
	Name() string
	Status() interface{}
}

// Server allows external inspection of a simulation.
type Server struct {
	timeTeller sim.TimeTeller

	lock       sync.Mutex
	reporters  []StatusReporter
	portNumber int
	url        string
}

// NewServer creates a new Server.
func NewServer() *Server {
	return &Server{}
}

// WithPortNumber sets the port the server listens on. Port 0 picks a random
// free port.
func (s *Server) WithPortNumber(portNumber int) *Server {
	s.portNumber = portNumber
	return s
}

// RegisterTimeTeller registers the time source of the simulation.
func (s *Server) RegisterTimeTeller(t sim.TimeTeller) {
	s.timeTeller = t
}

// RegisterComponent registers a component to be inspected.
func (s *Server) RegisterComponent(r StatusReporter) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.reporters = append(s.reporters, r)
}

// Router returns the HTTP handler serving the inspection API.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/now", s.now)
	r.HandleFunc("/api/components", s.listComponents)
	r.HandleFunc("/api/component/{name}", s.componentStatus)
	r.HandleFunc("/api/resources", s.resources)

	return r
}

// StartServer starts serving the inspection API and returns the URL it
// listens on.
func (s *Server) StartServer() (string, error) {
	listener, err := net.Listen("tcp",
		fmt.Sprintf("localhost:%d", s.portNumber))
	if err != nil {
		return "", err
	}

	s.url = "http://" + listener.Addr().String()
	fmt.Fprintf(os.Stderr, "Inspection server running at %s\n", s.url)

	go func() {
		_ = http.Serve(listener, s.Router())
	}()

	return s.url, nil
}

// StartServerAndOpen starts the server and opens it in the default browser.
func (s *Server) StartServerAndOpen() (string, error) {
	url, err := s.StartServer()
	if err != nil {
		return "", err
	}

	return url, browser.OpenURL(url)
}

func (s *Server) now(w http.ResponseWriter, _ *http.Request) {
	now := sim.VTimeInSec(0)
	if s.timeTeller != nil {
		now = s.timeTeller.CurrentTime()
	}

	writeJSON(w, map[string]float64{"now": float64(now)})
}

func (s *Server) listComponents(w http.ResponseWriter, _ *http.Request) {
	s.lock.Lock()
	defer s.lock.Unlock()

	names := make([]string, 0, len(s.reporters))
	for _, r := range s.reporters {
		names = append(names, r.Name())
	}

	writeJSON(w, names)
}

func (s *Server) componentStatus(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	s.lock.Lock()
	defer s.lock.Unlock()

	for _, reporter := range s.reporters {
		if reporter.Name() == name {
			writeJSON(w, reporter.Status())
			return
		}
	}

	http.Error(w, "component "+name+" not found", http.StatusNotFound)
}

func (s *Server) resources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memInfo, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{
		"rss_bytes":   memInfo.RSS,
		"cpu_percent": cpuPercent,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
