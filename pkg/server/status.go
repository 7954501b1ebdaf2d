package server

import (
	"net/http"

	"github.com/joeydtaylor/steeze-handoff/pkg/codec"
	"go.uber.org/zap"
)

type statusResp struct {
	Service string `json:"service"`
	Addr    string `json:"addr"`
	Pending int    `json:"pending"`
}

// status reports the number of unserved registrations. It goes through the
// actor inbox like any other registry read.
func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	n, err := s.actor.Len(r.Context())
	if err != nil {
		s.log.Warn("status unavailable", zap.Error(err))
		codec.Write(w, codec.JSONStrict, http.StatusServiceUnavailable, map[string]string{"error": "registry unavailable"})
		return
	}
	resp := statusResp{Service: s.cfg.Service, Pending: n}
	if a := s.Addr(); a != nil {
		resp.Addr = a.String()
	}
	codec.Write(w, codec.JSONStrict, http.StatusOK, resp)
}
