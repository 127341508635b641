package httpserver

import (
	"time"

	"roomledger/internal/domain"
)

// Money is rendered as fixed two-decimal strings; dates as YYYY-MM-DD.

type nightDTO struct {
	Date      string `json:"date"`
	Base      string `json:"base"`
	Weekend   string `json:"weekend"`
	Seasonal  string `json:"seasonal"`
	Occupancy string `json:"occupancy"`
	Total     string `json:"total"`
}

type quoteDTO struct {
	CategoryID int64      `json:"category_id"`
	CheckIn    string     `json:"check_in"`
	CheckOut   string     `json:"check_out"`
	Guests     int        `json:"guests"`
	Nights     []nightDTO `json:"nights"`
	Subtotal   string     `json:"subtotal"`
	Discount   string     `json:"discount"`
	Total      string     `json:"total"`
}

type roomDTO struct {
	ID         int64  `json:"id"`
	HotelID    int64  `json:"hotel_id"`
	CategoryID int64  `json:"category_id"`
	Number     string `json:"number"`
	Status     string `json:"status"`
}

type offerDTO struct {
	Room  roomDTO  `json:"room"`
	Price quoteDTO `json:"price"`
}

type stayItemDTO struct {
	ID            int64  `json:"id"`
	RoomID        int64  `json:"room_id"`
	PricePerNight string `json:"price_per_night"`
	Nights        int    `json:"nights"`
}

type reservationDTO struct {
	ID        int64         `json:"id"`
	Reference string        `json:"reference"`
	GuestID   int64         `json:"guest_id"`
	HotelID   int64         `json:"hotel_id"`
	CheckIn   string        `json:"check_in"`
	CheckOut  string        `json:"check_out"`
	Guests    int           `json:"guests"`
	Total     string        `json:"total"`
	Status    string        `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	Items     []stayItemDTO `json:"items"`
}

type reserveResponse struct {
	Reservation reservationDTO `json:"reservation"`
	Price       quoteDTO       `json:"price"`
}

type overrideDTO struct {
	ID         int64     `json:"id"`
	CategoryID int64     `json:"category_id"`
	Start      string    `json:"start"`
	End        string    `json:"end"`
	Price      string    `json:"price"`
	CreatedAt  time.Time `json:"created_at"`
}

type reserveRequest struct {
	RoomID   int64  `json:"room_id"`
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
	Guests   int    `json:"guests"`
	// honoured for staff only
	GuestID int64 `json:"guest_id,omitempty"`
}

type overrideRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Price string `json:"price"`
}

func toQuoteDTO(pb domain.PriceBreakdown) quoteDTO {
	nights := make([]nightDTO, 0, len(pb.Nights))
	for _, n := range pb.Nights {
		nights = append(nights, nightDTO{
			Date:      domain.FormatDate(n.Date),
			Base:      n.Base.StringFixed(2),
			Weekend:   n.Weekend.StringFixed(2),
			Seasonal:  n.Seasonal.StringFixed(2),
			Occupancy: n.Occupancy.StringFixed(2),
			Total:     n.Total.StringFixed(2),
		})
	}
	return quoteDTO{
		CategoryID: pb.CategoryID,
		CheckIn:    domain.FormatDate(pb.CheckIn),
		CheckOut:   domain.FormatDate(pb.CheckOut),
		Guests:     pb.GuestCount,
		Nights:     nights,
		Subtotal:   pb.Subtotal.StringFixed(2),
		Discount:   pb.Discount.StringFixed(2),
		Total:      pb.Total.StringFixed(2),
	}
}

func toRoomDTO(r domain.Room) roomDTO {
	return roomDTO{ID: r.ID, HotelID: r.HotelID, CategoryID: r.CategoryID, Number: r.Number, Status: string(r.Status)}
}

func toReservationDTO(r domain.Reservation) reservationDTO {
	items := make([]stayItemDTO, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, stayItemDTO{ID: it.ID, RoomID: it.RoomID, PricePerNight: it.PricePerNight.StringFixed(2), Nights: it.Nights})
	}
	return reservationDTO{
		ID:        r.ID,
		Reference: r.Reference,
		GuestID:   r.GuestID,
		HotelID:   r.HotelID,
		CheckIn:   domain.FormatDate(r.CheckIn),
		CheckOut:  domain.FormatDate(r.CheckOut),
		Guests:    r.GuestCount,
		Total:     r.Total.StringFixed(2),
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt.UTC(),
		Items:     items,
	}
}

func toOverrideDTO(o domain.RateOverride) overrideDTO {
	return overrideDTO{
		ID:         o.ID,
		CategoryID: o.CategoryID,
		Start:      domain.FormatDate(o.Start),
		End:        domain.FormatDate(o.End),
		Price:      o.Price.StringFixed(2),
		CreatedAt:  o.CreatedAt.UTC(),
	}
}
