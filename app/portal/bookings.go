package portal

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/evservice/core/handler"
	"github.com/dmitrymomot/evservice/core/logger"
	"github.com/dmitrymomot/evservice/core/payment"
	"github.com/dmitrymomot/evservice/core/response"
)

const appointmentLayout = "2006-01-02T15:04"

var bookingFields = []string{"serviceCenterId", "vehicleId", "serviceType", "appointmentAt", "notes", "amount"}

type bookingsView struct {
	History []payment.BookingRecord
}

type paymentView struct {
	Succeeded    bool
	Confirmation payment.Confirmation
	Reason       string
	Target       string
	Seconds      int
}

func (app *App) bookings(ctx *Context) handler.Response {
	return app.renderBookings(ctx, http.StatusOK, nil, "")
}

func (app *App) renderBookings(ctx *Context, status int, form map[string]string, errMsg string) handler.Response {
	rt, ok := runtimeOf(ctx)
	if !ok {
		return response.Error(errNoRuntime)
	}
	v := view{Title: "My bookings", User: currentUser(ctx), Form: form, Error: errMsg}

	history, err := payment.LoadHistory(ctx, rt.Durable)
	if err != nil {
		app.logger.WarnContext(ctx, "reading booking history failed", logger.ClientID(rt.ClientID), logger.Error(err))
		if v.Error == "" {
			v.Error = "Your booking history could not be read."
		}
	}
	v.Data = bookingsView{History: history}

	if pending, err := payment.LoadPending(ctx, rt.ShortLived); err == nil && v.Error == "" {
		v.Notice = fmt.Sprintf("Payment for order %s is awaiting confirmation.", pending.OrderID)
	}
	return app.pages.render(pageBookings, status, v)
}

// checkout stages the booking draft and sends the browser to the payment
// gateway.
func (app *App) checkout(ctx *Context) handler.Response {
	rt, ok := runtimeOf(ctx)
	if !ok {
		return response.Error(errNoRuntime)
	}
	sess, ok := rt.Session.Current()
	if !ok {
		return response.Redirect(app.guard.LoginURL("/customer/bookings"))
	}
	r := ctx.Request()
	if err := r.ParseForm(); err != nil {
		return response.Error(response.ErrBadRequest)
	}
	form := formValues(r, bookingFields...)

	booking, problem := parseBooking(form)
	if problem != "" {
		return app.renderBookings(ctx, http.StatusBadRequest, form, problem)
	}

	gatewayURL, err := app.payments.CreatePaymentURL(ctx, sess.Token, payment.PaymentRequest{
		OrderID:   booking.OrderID,
		Amount:    booking.Amount,
		OrderInfo: fmt.Sprintf("%s for vehicle %s", booking.ServiceType, booking.VehicleID),
		ReturnURL: app.config.Payment.ReturnURL,
	})
	if err != nil {
		app.logger.ErrorContext(ctx, "creating payment url failed", logger.ClientID(rt.ClientID), logger.Error(err))
		status := http.StatusBadGateway
		if errors.Is(err, payment.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		return app.renderBookings(ctx, status, form, payment.Reason(err))
	}

	if err := payment.StagePending(ctx, rt.ShortLived, booking, app.config.Payment.PendingTTL); err != nil {
		return response.Error(err)
	}
	app.logger.InfoContext(ctx, "checkout started",
		logger.UserID(sess.Identity.ID), slog.String("order_id", booking.OrderID))
	return response.RedirectSeeOther(gatewayURL)
}

// parseBooking builds a draft from the checkout form. problem is the message
// shown when the form is incomplete.
func parseBooking(form map[string]string) (b payment.PendingBooking, problem string) {
	b = payment.PendingBooking{
		OrderID:         uuid.NewString(),
		ServiceCenterID: strings.TrimSpace(form["serviceCenterId"]),
		VehicleID:       strings.TrimSpace(form["vehicleId"]),
		ServiceType:     strings.TrimSpace(form["serviceType"]),
		Notes:           strings.TrimSpace(form["notes"]),
	}
	if b.ServiceCenterID == "" || b.VehicleID == "" || b.ServiceType == "" {
		return b, "Service center, vehicle and service are required."
	}
	amount, err := strconv.ParseInt(strings.TrimSpace(form["amount"]), 10, 64)
	if err != nil || amount <= 0 {
		return b, "Amount must be a positive number."
	}
	b.Amount = amount
	if at := strings.TrimSpace(form["appointmentAt"]); at != "" {
		t, err := time.ParseInLocation(appointmentLayout, at, time.Local)
		if err != nil {
			return b, "Appointment time is not valid."
		}
		b.AppointmentAt = t
	}
	return b, ""
}

// paymentReturn reconciles the gateway return once per page load. A
// signed-out success detours through login immediately; everything else
// shows the result and navigates after the configured delay.
func (app *App) paymentReturn(ctx *Context) handler.Response {
	rt, ok := runtimeOf(ctx)
	if !ok {
		return response.Error(errNoRuntime)
	}

	rec := payment.NewReconciler(rt.Session, app.payments, rt.ShortLived, rt.Durable,
		payment.WithReconcilerLogger(app.logger.With(logger.Component("payment"), logger.ClientID(rt.ClientID))),
		payment.WithObserver(app.metrics),
		payment.WithDelay(app.config.Payment.RedirectDelay),
		payment.WithMarkerTTL(app.config.Payment.MarkerTTL),
		payment.WithLoginURL(app.guard.LoginURL),
	)
	defer rec.Close()

	out := rec.Run(ctx, ctx.Request().URL.RawQuery)
	nav := out.Navigation
	if nav.Replace {
		return response.Redirect(nav.Target)
	}

	page := app.pages.render(pagePayment, http.StatusOK, view{
		Title: "Payment",
		User:  currentUser(ctx),
		Data: paymentView{
			Succeeded:    out.Result.Status == payment.Succeeded,
			Confirmation: out.Result.Confirmation,
			Reason:       out.Result.Reason,
			Target:       nav.Target,
			Seconds:      int((nav.Delay + time.Second - 1) / time.Second),
		},
	})
	return response.Refresh(nav.Target, nav.Delay, page)
}
