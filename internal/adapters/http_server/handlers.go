package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"roomledger/internal/app"
	"roomledger/internal/domain"
)

const maxBodyBytes = 1 << 20

type Handlers struct {
	Pricing      *app.PricingService
	Availability *app.AvailabilityService
	Reservations *app.ReservationService

	JWTSecret string
	WriteRPS  int
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Get("/v1/hotels/{id}/availability", h.searchAvailability)
	s.mux.Get("/v1/rooms/{id}/availability", h.roomAvailability)
	s.mux.Get("/v1/categories/{id}/quote", h.getQuote)
	s.mux.Get("/v1/categories/{id}/price", h.getNightlyPrice)

	s.mux.Group(func(r chi.Router) {
		r.Use(Authenticate(h.JWTSecret))

		r.Get("/v1/reservations/{id}", h.getReservation)

		r.Group(func(r chi.Router) {
			r.Use(RateLimit(h.WriteRPS))
			r.Post("/v1/reservations", h.createReservation)
			r.Post("/v1/reservations/{id}/cancel", h.cancelReservation)
			r.With(RequireRole(domain.RoleStaff, domain.RoleAdmin)).Post("/v1/categories/{id}/rates", h.createRateOverride)
		})
	})
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCached writes v with an ETag and answers 304 when the client already has it.
func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to write body")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write JSON body")
	}
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id must be a positive number", domain.ErrInvalidInput)
	}
	return id, nil
}

func queryStay(r *http.Request) (in, out time.Time, err error) {
	q := r.URL.Query()
	if in, err = domain.ParseDate(q.Get("check_in")); err != nil {
		return
	}
	out, err = domain.ParseDate(q.Get("check_out"))
	return
}

func queryGuests(r *http.Request) (int, error) {
	s := r.URL.Query().Get("guests")
	if s == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: guests must be an integer", domain.ErrInvalidInput)
	}
	return n, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

func (h *Handlers) searchAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, out, err := queryStay(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	guests, err := queryGuests(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	offers, err := h.Availability.GetAvailableRooms(r.Context(), id, in, out, guests)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items := make([]offerDTO, 0, len(offers))
	for _, o := range offers {
		items = append(items, offerDTO{Room: toRoomDTO(o.Room), Price: toQuoteDTO(o.Price)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handlers) roomAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, out, err := queryStay(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok, err := h.Availability.IsAvailable(r.Context(), id, in, out)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"room_id":   id,
		"check_in":  domain.FormatDate(in),
		"check_out": domain.FormatDate(out),
		"available": ok,
	})
}

func (h *Handlers) getQuote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, out, err := queryStay(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	guests, err := queryGuests(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	pb, err := h.Pricing.PriceQuote(r.Context(), id, in, out, guests)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, toQuoteDTO(pb))
}

func (h *Handlers) getNightlyPrice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := domain.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	price, err := h.Pricing.ResolvePrice(r.Context(), id, d)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, map[string]any{"category_id": id, "date": domain.FormatDate(d), "price": price.StringFixed(2)})
}

func (h *Handlers) createReservation(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	var body reserveRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := domain.ParseDate(body.CheckIn)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := domain.ParseDate(body.CheckOut)
	if err != nil {
		writeError(w, r, err)
		return
	}
	guestID := p.UserID
	if body.GuestID != 0 && body.GuestID != p.UserID {
		if !p.Elevated() {
			writeError(w, r, fmt.Errorf("%w: only staff may book for another guest", domain.ErrUnauthorized))
			return
		}
		guestID = body.GuestID
	}

	res, err := h.Reservations.Reserve(r.Context(), app.ReserveRequest{
		GuestID:  guestID,
		RoomID:   body.RoomID,
		CheckIn:  in,
		CheckOut: out,
		Guests:   body.Guests,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/reservations/%d", res.Reservation.ID))
	writeJSON(w, http.StatusCreated, reserveResponse{
		Reservation: toReservationDTO(res.Reservation),
		Price:       toQuoteDTO(res.Price),
	})
}

func (h *Handlers) getReservation(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Reservations.GetReservation(r.Context(), id, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, toReservationDTO(res))
}

func (h *Handlers) cancelReservation(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Reservations.Cancel(r.Context(), id, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationDTO(res))
}

func (h *Handlers) createRateOverride(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body overrideRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	start, err := domain.ParseDate(body.Start)
	if err != nil {
		writeError(w, r, err)
		return
	}
	end, err := domain.ParseDate(body.End)
	if err != nil {
		writeError(w, r, err)
		return
	}
	price, err := decimal.NewFromString(body.Price)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: price must be a decimal string", domain.ErrInvalidInput))
		return
	}

	o, err := h.Pricing.CreateRateOverride(r.Context(), p, domain.RateOverride{
		CategoryID: id,
		Start:      start,
		End:        end,
		Price:      price.Round(2),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOverrideDTO(o))
}
