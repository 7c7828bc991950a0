package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/speters/ledlink/pkg/ledlink"
)

// maxFrameBody bounds the request body of POST /frame
const maxFrameBody = 1 << 16

// api exposes a single Encoder over HTTP. Requests are serialized, the link is strictly lockstep.
type api struct {
	cmdLock  sync.Mutex
	enc      *ledlink.Encoder
	profiles ledlink.ProfileTable
}

func newAPI(enc *ledlink.Encoder, profiles ledlink.ProfileTable) *api {
	return &api{enc: enc, profiles: profiles}
}

func (a *api) router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/version", versionInfo).Methods("GET")
	router.HandleFunc("/profiles", a.getProfiles).Methods("GET")
	router.HandleFunc("/profile", a.getProfile).Methods("GET")
	router.HandleFunc("/profile", a.setProfile).Methods("POST")
	router.HandleFunc("/reset", a.reset).Methods("POST")
	router.HandleFunc("/frame", a.sendFrame).Methods("POST")
	return router
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(code)
	e := json.NewEncoder(w)
	e.SetIndent("", "    ")
	if err := e.Encode(v); err != nil {
		log.Errorf("could not encode reply: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
	w.WriteHeader(httpStatus(err))
	w.Write([]byte(err.Error()))
}

// httpStatus maps link errors to response codes
func httpStatus(err error) int {
	switch {
	case errors.Is(err, ledlink.ErrBufferFull):
		return http.StatusInsufficientStorage
	case errors.Is(err, ledlink.ErrNoAck),
		errors.Is(err, ledlink.ErrLinkReset),
		errors.Is(err, ledlink.ErrModeSelect):
		return http.StatusBadGateway
	case errors.Is(err, ledlink.ErrState):
		return http.StatusConflict
	case errors.Is(err, ledlink.ErrInvalidProfile):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	v := struct {
		Version   string `json:"version"`
		BuildDate string `json:"build_date"`
	}{Version: buildVersion, BuildDate: buildDate}
	writeJSON(w, http.StatusOK, v)
}

func (a *api) getProfiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.profiles)
}

type profileReply struct {
	State   string          `json:"state"`
	Profile ledlink.Profile `json:"profile"`
}

func (a *api) getProfile(w http.ResponseWriter, r *http.Request) {
	a.cmdLock.Lock()
	defer a.cmdLock.Unlock()
	writeJSON(w, http.StatusOK, profileReply{State: a.enc.State().String(), Profile: a.enc.Profile()})
}

// setProfile reboots the far end and selects either raw timings or a device's profile
func (a *api) setProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ledlink.Profile
		Device string `json:"device"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(fmt.Sprintf("could not decode profile: %v", err)))
		return
	}
	p := req.Profile
	if req.Device != "" {
		var err error
		p, err = a.profiles.Lookup(req.Device)
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(err.Error()))
			return
		}
	}
	if err := p.Validate(); err != nil {
		writeError(w, err)
		return
	}

	a.cmdLock.Lock()
	defer a.cmdLock.Unlock()
	if err := a.enc.Reset(); err != nil {
		writeError(w, err)
		return
	}
	if err := a.enc.SelectMode(p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profileReply{State: a.enc.State().String(), Profile: a.enc.Profile()})
}

func (a *api) reset(w http.ResponseWriter, r *http.Request) {
	a.cmdLock.Lock()
	defer a.cmdLock.Unlock()
	if err := a.enc.Reset(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "OK")
}

type frameReply struct {
	ID     string `json:"id"`
	Length int    `json:"length"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// sendFrame sends the raw request body as one frame
func (a *api) sendFrame(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxFrameBody+1))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(err.Error()))
		return
	}
	if len(data) > maxFrameBody {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		w.Write([]byte(fmt.Sprintf("frame exceeds %d bytes", maxFrameBody)))
		return
	}

	a.cmdLock.Lock()
	f, err := a.enc.SendFrame(data)
	a.cmdLock.Unlock()

	reply := frameReply{
		ID:     f.ID.String(),
		Length: f.Len(),
		Status: ledlink.StatusOf(err).String(),
	}
	code := http.StatusOK
	if err != nil {
		log.Warnf("Frame %v failed: %v", f.ID, err)
		reply.Error = err.Error()
		code = httpStatus(err)
	}
	writeJSON(w, code, reply)
}
