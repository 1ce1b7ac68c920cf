package person

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/registry/pkg/common/logger"
	"github.com/synaptica-ai/registry/pkg/common/models"
	"github.com/synaptica-ai/registry/pkg/translator"
)

type HTTPHandler struct {
	service *Service
	maxBody int64
	now     func() time.Time
}

func NewHTTPHandler(service *Service, maxBody int64) *HTTPHandler {
	return &HTTPHandler{service: service, maxBody: maxBody, now: time.Now}
}

// Register mounts the local API.
func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/people", h.handleCreate).Methods(http.MethodPost)
	router.HandleFunc("/people/search", h.handleSearch).Methods(http.MethodPost)
	router.HandleFunc("/people/remote/{identifier}", h.handleFindOrFetch).Methods(http.MethodPost)
	router.HandleFunc("/people/{id:[0-9]+}", h.handleGet).Methods(http.MethodGet)
	router.HandleFunc("/people/{id:[0-9]+}/demographics", h.handleUpdate).Methods(http.MethodPut)
}

// RegisterPeer mounts the endpoints other registry instances call.
func (h *HTTPHandler) RegisterPeer(router *mux.Router) {
	router.HandleFunc("/people/remote_demographics", h.handleRemoteDemographics).Methods(http.MethodPost)
	router.HandleFunc("/people/create_remote", h.handleCreateRemote).Methods(http.MethodPost)
}

type View struct {
	ID                 uint              `json:"person_id"`
	UUID               string            `json:"uuid"`
	Name               string            `json:"name"`
	ShortName          string            `json:"short_name"`
	Gender             string            `json:"gender"`
	Birthdate          string            `json:"birthdate,omitempty"`
	BirthdateEstimated bool              `json:"birthdate_estimated"`
	Age                *int              `json:"age,omitempty"`
	AgeInMonths        *int              `json:"age_in_months,omitempty"`
	Address            string            `json:"address,omitempty"`
	CurrentResidence   string            `json:"current_residence"`
	Occupation         string            `json:"occupation"`
	PhoneNumbers       map[string]string `json:"phone_numbers"`
	Identifiers        models.StringMap  `json:"identifiers,omitempty"`
}

func (h *HTTPHandler) view(p Person) View {
	now := h.now()
	v := View{
		ID:                 p.ID,
		UUID:               p.UUID,
		Name:               p.Name(),
		ShortName:          p.ShortName(),
		Gender:             p.FormattedGender(),
		Birthdate:          p.BirthdateFormatted(),
		BirthdateEstimated: p.BirthdateEstimated,
		Address:            p.Address(),
		CurrentResidence:   p.CurrentResidence(),
		Occupation:         p.Occupation(h.service.Types()),
		PhoneNumbers:       p.PhoneNumbers(h.service.Types()),
	}
	if age, ok := p.Age(now); ok {
		v.Age = &age
	}
	if months, ok := p.AgeInMonths(now); ok {
		v.AgeInMonths = &months
	}
	if d := p.ToDemographics(h.service.Types()); d.Patient != nil {
		v.Identifiers = d.Patient.Identifiers
	}
	return v
}

func (h *HTTPHandler) views(people []Person) []View {
	out := make([]View, 0, len(people))
	for _, p := range people {
		out = append(out, h.view(p))
	}
	return out
}

func (h *HTTPHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

func (h *HTTPHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	form, err := ParseForm(body)
	if err != nil {
		h.writeError(w, err, "failed to parse registration")
		return
	}

	var res CreateResult
	if form.Outcome != "" {
		res, err = h.service.CreateFromForm(r.Context(), form)
	} else {
		res, err = h.service.Register(r.Context(), form.Demographics)
	}
	if err != nil {
		h.writeError(w, err, "failed to register person")
		return
	}
	if res.Outcome != "" {
		writeJSON(w, outcomeStatus(res.Outcome), map[string]string{"outcome": string(res.Outcome)})
		return
	}
	writeJSON(w, http.StatusCreated, h.view(*res.Person))
}

func (h *HTTPHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	form, err := ParseForm(body)
	if err != nil {
		h.writeError(w, err, "failed to parse demographics")
		return
	}
	if form.Outcome != "" {
		http.Error(w, "unexpected outcome in update", http.StatusBadRequest)
		return
	}
	form.Demographics.PersonID = id

	p, err := h.service.UpdateDemographics(r.Context(), form.Demographics)
	if err != nil {
		h.writeError(w, err, "failed to update demographics")
		return
	}
	writeJSON(w, http.StatusOK, h.view(*p))
}

func (h *HTTPHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	var criteria models.SearchCriteria
	if err := json.Unmarshal(body, &criteria); err != nil {
		logger.Log.WithError(err).Warn("invalid search payload")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	people, err := h.service.Resolver().Search(r.Context(), criteria)
	if err != nil {
		h.writeError(w, err, "failed to search people")
		return
	}
	writeJSON(w, http.StatusOK, h.views(people))
}

func (h *HTTPHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.service.store.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "failed to load person")
		return
	}
	writeJSON(w, http.StatusOK, h.view(*p))
}

func (h *HTTPHandler) handleFindOrFetch(w http.ResponseWriter, r *http.Request) {
	identifier := mux.Vars(r)["identifier"]
	people, err := h.service.FindOrFetch(r.Context(), identifier)
	if err != nil {
		h.writeError(w, err, "failed to find or fetch person")
		return
	}
	writeJSON(w, http.StatusOK, h.views(people))
}

// handleRemoteDemographics answers a peer lookup with {"person": ...} for the
// first match, or {} when nothing matches.
func (h *HTTPHandler) handleRemoteDemographics(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	var envelope models.WireEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	people, err := h.service.Resolver().FindByDemographics(r.Context(), translator.FromWire(envelope.Person))
	if err != nil {
		h.writeError(w, err, "failed to look up demographics")
		return
	}
	if len(people) == 0 {
		writeJSON(w, http.StatusOK, map[string]interface{}{})
		return
	}
	writeJSON(w, http.StatusOK, people[0].Demographics(h.service.Types()))
}

// handleCreateRemote materializes a record pushed by a peer and answers with
// the stored demographics.
func (h *HTTPHandler) handleCreateRemote(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	var envelope models.WireEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.service.CreateFromForm(r.Context(), Form{Demographics: translator.FromWire(envelope.Person)})
	if err != nil {
		h.writeError(w, err, "failed to create remote person")
		return
	}
	writeJSON(w, http.StatusOK, res.Person.Demographics(h.service.Types()))
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error, msg string) {
	var failure interface{ Outcome() models.Outcome }
	switch {
	case IsValidationError(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "person not found", http.StatusNotFound)
	case errors.Is(err, ErrSyncInProgress):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &failure):
		writeJSON(w, outcomeStatus(failure.Outcome()), map[string]string{"outcome": string(failure.Outcome())})
	default:
		logger.Log.WithError(err).Error(msg)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func outcomeStatus(o models.Outcome) int {
	if o == models.OutcomeTimeout {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil || id == 0 {
		http.Error(w, "invalid person id", http.StatusBadRequest)
		return 0, false
	}
	return uint(id), true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
