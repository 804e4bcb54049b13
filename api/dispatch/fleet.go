package dispatch

import (
	"net/http"
	"strconv"
	"time"

	"github.com/fleetops/dispatchd/core/model"
)

func (h *Handler) putDriver(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email        string   `json:"email"`
		Name         string   `json:"name"`
		Suspended    bool     `json:"suspended"`
		LicenseTypes []string `json:"license_types"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	d := model.Driver{
		ID:        r.PathValue("id"),
		Email:     req.Email,
		Name:      req.Name,
		Suspended: req.Suspended,
	}
	for _, lt := range req.LicenseTypes {
		vt, err := model.VehicleTypeFromString(lt)
		if err != nil {
			h.fail(w, err)
			return
		}
		d.LicenseTypes = append(d.LicenseTypes, vt)
	}
	if err := h.store.PutDriver(r.Context(), d); err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, d)
}

func (h *Handler) listDrivers(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListDrivers(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, list)
}

func (h *Handler) putSchedule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WorkDays      []int  `json:"work_days"` // 0=Sunday .. 6=Saturday
		WorkStartTime string `json:"work_start_time"`
		WorkEndTime   string `json:"work_end_time"`
		Active        bool   `json:"active"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	sc := model.DriverSchedule{
		DriverID:      r.PathValue("id"),
		WorkStartTime: req.WorkStartTime,
		WorkEndTime:   req.WorkEndTime,
		Active:        req.Active,
	}
	for _, d := range req.WorkDays {
		sc.WorkDays = append(sc.WorkDays, time.Weekday(d))
	}
	if _, err := h.store.GetDriver(r.Context(), sc.DriverID); err != nil {
		h.fail(w, err)
		return
	}
	if err := h.store.PutSchedule(r.Context(), sc); err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, sc)
}

func (h *Handler) putVehicle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RegistrationNumber string `json:"registration_number"`
		Brand              string `json:"brand"`
		Model              string `json:"model"`
		Type               string `json:"type"`
		Available          bool   `json:"available"`
		Notes              string `json:"notes"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	vt, err := model.VehicleTypeFromString(req.Type)
	if err != nil {
		h.fail(w, err)
		return
	}
	v := model.Vehicle{
		ID:                 r.PathValue("id"),
		RegistrationNumber: req.RegistrationNumber,
		Brand:              req.Brand,
		Model:              req.Model,
		Type:               vt,
		Available:          req.Available,
		Notes:              req.Notes,
	}
	if err := h.store.PutVehicle(r.Context(), v); err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, v)
}

func (h *Handler) listVehicles(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListVehicles(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, list)
}

func (h *Handler) availableDrivers(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var vt *model.VehicleType
	if raw := r.URL.Query().Get("vehicle_type"); raw != "" {
		t, err := model.VehicleTypeFromString(raw)
		if err != nil {
			h.fail(w, err)
			return
		}
		vt = &t
	}
	list, err := h.resolver.AvailableDrivers(r.Context(), date, vt)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, list)
}

func (h *Handler) availableVehicles(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var minCapacity float64
	if raw := r.URL.Query().Get("min_capacity"); raw != "" {
		minCapacity, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			h.fail(w, invalid(err))
			return
		}
	}
	list, err := h.resolver.AvailableVehicles(r.Context(), date, minCapacity)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, list)
}
