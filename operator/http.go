package operator

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/KPrasch/nucypher/reencryption"
)

// maxRequestBody is the 1 MiB request size limit the external interface
// table imposes on every endpoint.
const maxRequestBody = 1 << 20

// Server exposes a Node over the HTTP surface: public_information,
// node_metadata, reencrypt, revoke, ping, check_availability, and status.
type Server struct {
	node      *Node
	mux       *mux.Router
	startedAt time.Time
}

// NewServer builds the router for node. Handlers are thin: request
// decoding, a call into the node's capabilities, response encoding, and
// status-code mapping. No business logic lives here.
func NewServer(node *Node) *Server {
	s := &Server{node: node, mux: mux.NewRouter(), startedAt: time.Now()}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/public_information", s.handlePublicInformation).Methods(http.MethodGet)
	s.mux.HandleFunc("/node_metadata", s.handleGetNodeMetadata).Methods(http.MethodGet)
	s.mux.HandleFunc("/node_metadata", s.handlePostNodeMetadata).Methods(http.MethodPost)
	s.mux.HandleFunc("/reencrypt", s.handleReencrypt).Methods(http.MethodPost)
	s.mux.HandleFunc("/revoke", s.handleRevoke).Methods(http.MethodPost)
	s.mux.HandleFunc("/ping", s.handlePing).Methods(http.MethodGet)
	s.mux.HandleFunc("/check_availability", s.handleCheckAvailability).Methods(http.MethodPost)
	s.mux.HandleFunc("/status/", s.handleStatus).Methods(http.MethodGet)
}

func (s *Server) selfMetadata() (Metadata, error) {
	return NewMetadata(s.node.Auth, s.node.OperatorAddress(), s.node.Decrypting.Key().Public(), s.node.chainID, time.Now())
}

// handlePublicInformation returns this node's signed metadata bytes, the
// minimal self-description every other endpoint's authentication builds on.
func (s *Server) handlePublicInformation(w http.ResponseWriter, r *http.Request) {
	m, err := s.selfMetadata()
	if err != nil {
		s.node.Logger.Errorw("building public information", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeOctetStream(w, m.Bytes())
}

// handleGetNodeMetadata returns the known-nodes bytestring. Node discovery
// and gossip are out of scope, so this node's known-nodes set is itself:
// the response is this node's single Metadata record, in the same encoding
// public_information uses.
func (s *Server) handleGetNodeMetadata(w http.ResponseWriter, r *http.Request) {
	m, err := s.selfMetadata()
	if err != nil {
		s.node.Logger.Errorw("building node metadata", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeOctetStream(w, m.Bytes())
}

// handlePostNodeMetadata accepts a peer's metadata announcement and replies
// with this node's own signed metadata. Storing or forwarding the peer's
// announcement (gossip) is out of scope; this endpoint exists only so a
// peer's handshake against this node succeeds.
func (s *Server) handlePostNodeMetadata(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		return
	}
	if _, err := ParseMetadata(body); err != nil {
		http.Error(w, "malformed metadata request", http.StatusBadRequest)
		return
	}
	m, err := s.selfMetadata()
	if err != nil {
		s.node.Logger.Errorw("building node metadata response", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeOctetStream(w, m.Bytes())
}

// handleReencrypt is the core PRE service entrypoint: decode the request,
// run the pipeline, map the result (or error) onto the wire.
func (s *Server) handleReencrypt(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		return
	}
	req, err := reencryption.ParseRequest(body)
	if err != nil {
		http.Error(w, "malformed reencryption request", http.StatusBadRequest)
		return
	}

	resp, err := s.node.Reencryptor.Reencrypt(r.Context(), req)
	if err != nil {
		status := reencryption.StatusCode(err)
		s.node.Logger.Infow("reencrypt request failed", "hrac", req.HRAC.String(), "status", status, "error", err)
		http.Error(w, err.Error(), status)
		return
	}
	writeOctetStream(w, resp.Bytes())
}

// handleRevoke authenticates a RevocationOrder and adds its HRAC to the
// local revocation set.
func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		return
	}
	order, err := reencryption.ParseRevocationOrder(body)
	if err != nil {
		http.Error(w, "malformed revocation order", http.StatusBadRequest)
		return
	}
	if !order.Authenticate() {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}
	if err := s.node.Revoked.Revoke(order.HRAC); err != nil {
		s.node.Logger.Errorw("persisting revocation", "hrac", order.HRAC.String(), "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handlePing returns the caller's observed remote address as plain text.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte(host))
}

// handleCheckAvailability accepts a peer's metadata and replies 200 if it
// parses, 400 otherwise. It neither probes the peer nor checks this node's
// own reachability or configuration.
func (s *Server) handleCheckAvailability(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		return
	}
	if _, err := ParseMetadata(body); err != nil {
		http.Error(w, "malformed metadata", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type statusResponse struct {
	OperatorAddress string `json:"operator_address"`
	SigningKey      string `json:"signing_key"`
	DecryptingKey   string `json:"decrypting_key"`
	ChainID         uint64 `json:"chain_id"`
	UptimeSeconds   int64  `json:"uptime_seconds"`
}

// handleStatus returns a JSON status payload, the one endpoint in this
// surface exempt from the octet-stream convention.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	addr := s.node.OperatorAddress()
	resp := statusResponse{
		OperatorAddress: hexPrefixed(addr[:]),
		SigningKey:      hexPrefixed(s.node.Auth.Public().Bytes()),
		DecryptingKey:   hexPrefixed(s.node.Decrypting.Key().Public().Bytes()),
		ChainID:         s.node.chainID,
		UptimeSeconds:   int64(time.Since(s.startedAt).Seconds()),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.node.Logger.Errorw("encoding status response", "error", err)
	}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "request body too large or unreadable", http.StatusRequestEntityTooLarge)
		return nil, err
	}
	return body, nil
}

func writeOctetStream(w http.ResponseWriter, b []byte) {
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(b)
}

func hexPrefixed(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, 2+2*len(b))
	out[0], out[1] = '0', 'x'
	for i, c := range b {
		out[2+2*i] = hextable[c>>4]
		out[2+2*i+1] = hextable[c&0x0f]
	}
	return string(out)
}
