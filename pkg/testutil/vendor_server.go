package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
)

// VendorDevice is one stove in the fake cloud's device list.
type VendorDevice struct {
	ID      string `json:"id_device"`
	Name    string `json:"name"`
	Product string `json:"name_product"`
}

// RegisterWrite is one recorded write request.
type RegisterWrite struct {
	DeviceID string
	Key      string
	Value    float64
}

// VendorServer fakes the Agua IOT cloud over HTTP: login, device list,
// register buffer reads and register writes. Writes are recorded for
// assertions and applied to the buffer, so the next poll reflects them.
// All devices share one register buffer.
type VendorServer struct {
	server *httptest.Server

	mu           sync.Mutex
	devices      []VendorDevice
	registers    map[string]interface{}
	writes       []RegisterWrite
	logins       int
	loginStatus  int
	bufferStatus int
}

// NewVendorServer starts the fake cloud with one device and a running-stove
// register buffer. Close it when the test finishes.
func NewVendorServer() *VendorServer {
	v := &VendorServer{
		devices: []VendorDevice{
			{ID: "DEV1", Name: "Living Room Stove", Product: "Giulia EVO"},
		},
		registers: map[string]interface{}{
			"status":              6,
			"status_translated":   "ON",
			"air_temperature":     19.5,
			"set_air_temperature": 43,
			"gas_temperature":     142.5,
			"real_power":          3,
			"set_power":           4,
			"min_temp":            15,
			"max_temp":            30,
		},
		loginStatus:  http.StatusOK,
		bufferStatus: http.StatusOK,
	}
	v.server = httptest.NewServer(http.HandlerFunc(v.handle))
	return v
}

// URL returns the fake cloud's base URL, for use as an API root override.
func (v *VendorServer) URL() string {
	return v.server.URL
}

// Close shuts the fake cloud down.
func (v *VendorServer) Close() {
	v.server.Close()
}

// SetLoginStatus changes the status code returned by the login endpoint.
// Use http.StatusUnauthorized to simulate rejected credentials.
func (v *VendorServer) SetLoginStatus(code int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.loginStatus = code
}

// SetBufferStatus changes the status code returned by buffer reads. Use a
// server error to make polls fail while login still succeeds.
func (v *VendorServer) SetBufferStatus(code int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.bufferStatus = code
}

// SetDevices replaces the device list.
func (v *VendorServer) SetDevices(devices ...VendorDevice) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.devices = devices
}

// SetRegister changes one register in the buffer.
func (v *VendorServer) SetRegister(key string, value interface{}) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.registers[key] = value
}

// Register returns the current value of one register.
func (v *VendorServer) Register(key string) interface{} {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.registers[key]
}

// Writes returns every recorded write, in arrival order.
func (v *VendorServer) Writes() []RegisterWrite {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]RegisterWrite, len(v.writes))
	copy(out, v.writes)
	return out
}

// CountWrites returns how many writes targeted the given register.
func (v *VendorServer) CountWrites(key string) int {
	v.mu.Lock()
	defer v.mu.Unlock()

	count := 0
	for _, w := range v.writes {
		if w.Key == key {
			count++
		}
	}
	return count
}

// ClearWrites drops the recorded writes.
func (v *VendorServer) ClearWrites() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.writes = nil
}

// Logins returns how many login calls the fake has served.
func (v *VendorServer) Logins() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.logins
}

func (v *VendorServer) handle(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/userLogin":
		v.handleLogin(w, r)
	case "/deviceList":
		v.handleDeviceList(w, r)
	case "/deviceGetBufferReaded":
		v.handleBuffer(w, r)
	case "/deviceRequestWriting":
		v.handleWrite(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (v *VendorServer) handleLogin(w http.ResponseWriter, _ *http.Request) {
	v.mu.Lock()
	v.logins++
	status := v.loginStatus
	v.mu.Unlock()

	if status != http.StatusOK {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, map[string]string{"token": "test-token"})
}

func (v *VendorServer) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer test-token"
}

func (v *VendorServer) handleDeviceList(w http.ResponseWriter, r *http.Request) {
	if !v.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	v.mu.Lock()
	devices := make([]VendorDevice, len(v.devices))
	copy(devices, v.devices)
	v.mu.Unlock()

	writeJSON(w, map[string]interface{}{"devices": devices})
}

func (v *VendorServer) handleBuffer(w http.ResponseWriter, r *http.Request) {
	if !v.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	v.mu.Lock()
	status := v.bufferStatus
	regs := make(map[string]interface{}, len(v.registers))
	for k, value := range v.registers {
		regs[k] = value
	}
	v.mu.Unlock()

	if status != http.StatusOK {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, regs)
}

func (v *VendorServer) handleWrite(w http.ResponseWriter, r *http.Request) {
	if !v.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var req struct {
		IDDevice string  `json:"id_device"`
		Key      string  `json:"key"`
		Value    float64 `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	v.mu.Lock()
	v.writes = append(v.writes, RegisterWrite{DeviceID: req.IDDevice, Key: req.Key, Value: req.Value})
	v.registers[req.Key] = req.Value
	// The real cloud keeps the translated status in step with the raw one.
	if req.Key == "status" {
		if req.Value == 0 {
			v.registers["status_translated"] = "OFF"
		} else {
			v.registers["status_translated"] = "ON"
		}
	}
	v.mu.Unlock()

	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
