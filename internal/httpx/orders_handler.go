package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/AydinMate/wedding-admin/internal/auth"
	"github.com/AydinMate/wedding-admin/internal/orders"
)

// OrdersHandler serves the admin dashboard. Every route is store-scoped and
// owner-only.
type OrdersHandler struct {
	Service *orders.Service
}

type orderReq struct {
	IsPaid         orders.Flag      `json:"isPaid"`
	IsCash         orders.Flag      `json:"isCash"`
	IsDelivery     orders.Flag      `json:"isDelivery"`
	HireDate       orders.Date      `json:"hireDate"`
	DropoffAddress string           `json:"dropoffAddress"`
	CustomerName   string           `json:"customerName"`
	OrderItems     orders.Selection `json:"orderItems"`
}

func (q orderReq) input(r *http.Request) orders.OrderInput {
	return orders.OrderInput{
		UserID:         auth.UserID(r.Context()),
		StoreID:        chi.URLParam(r, "storeId"),
		OrderID:        chi.URLParam(r, "orderId"),
		HireDate:       q.HireDate.Time,
		IsDelivery:     bool(q.IsDelivery),
		DropoffAddress: q.DropoffAddress,
		CustomerName:   q.CustomerName,
		IsPaid:         bool(q.IsPaid),
		IsCash:         bool(q.IsCash),
		Items:          q.OrderItems,
	}
}

type hireReq struct {
	ProductID string      `json:"productId"`
	HireDate  orders.Date `json:"hireDate"`
	IsPaid    orders.Flag `json:"isPaid"`
	IsCash    orders.Flag `json:"isCash"`
}

type availabilityResp struct {
	Hired bool `json:"hired"`
}

type revenueResp struct {
	Total string `json:"total"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/{storeId}/orders", h.createOrder)
	r.Get("/{storeId}/orders", h.listOrders)
	r.Get("/{storeId}/orders/{orderId}", h.getOrder)
	r.Patch("/{storeId}/orders/{orderId}", h.updateOrder)
	r.Delete("/{storeId}/orders/{orderId}", h.deleteOrder)

	r.Get("/{storeId}/hires", h.listHires)
	r.Post("/{storeId}/hires", h.createHire)
	r.Get("/{storeId}/hires/availability", h.availability)
	r.Get("/{storeId}/hires/{hireId}", h.getHire)
	r.Delete("/{storeId}/hires/{hireId}", h.deleteHire)

	r.Get("/{storeId}/products", h.listProducts)
	r.Get("/{storeId}/reports/revenue", h.revenue)
	r.Get("/{storeId}/reports/week", h.week)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orderReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.Service.CreateOrder(r.Context(), req.input(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) updateOrder(w http.ResponseWriter, r *http.Request) {
	var req orderReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.Service.UpdateOrder(r.Context(), req.input(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.DeleteOrder(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "storeId"), chi.URLParam(r, "orderId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Service.GetOrder(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "storeId"), chi.URLParam(r, "orderId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListOrders(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "storeId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) createHire(w http.ResponseWriter, r *http.Request) {
	var req hireReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	hire, err := h.Service.CreateHire(r.Context(), orders.HireInput{
		UserID:    auth.UserID(r.Context()),
		StoreID:   chi.URLParam(r, "storeId"),
		ProductID: req.ProductID,
		HireDate:  req.HireDate.Time,
		IsPaid:    bool(req.IsPaid),
		IsCash:    bool(req.IsCash),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hire)
}

func (h *OrdersHandler) listHires(w http.ResponseWriter, r *http.Request) {
	hs, err := h.Service.ListHires(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "storeId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hs)
}

func (h *OrdersHandler) getHire(w http.ResponseWriter, r *http.Request) {
	hire, err := h.Service.GetHire(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "storeId"), chi.URLParam(r, "hireId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hire)
}

func (h *OrdersHandler) deleteHire(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.DeleteHire(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "storeId"), chi.URLParam(r, "hireId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *OrdersHandler) availability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, err := orders.ParseDate(q.Get("date"))
	if err != nil {
		writeError(w, r, errors.WithMessage(orders.ErrValidation, err.Error()))
		return
	}
	hired, err := h.Service.Availability(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "storeId"),
		q.Get("productId"), date, q.Get("excludeOrderId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, availabilityResp{Hired: hired})
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Service.ListProducts(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "storeId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *OrdersHandler) revenue(w http.ResponseWriter, r *http.Request) {
	v, err := h.Service.TotalRevenue(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "storeId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, revenueResp{Total: v.StringFixed(2)})
}

func (h *OrdersHandler) week(w http.ResponseWriter, r *http.Request) {
	week, err := h.Service.ThisWeeksOrders(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "storeId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, week)
}
