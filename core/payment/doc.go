// Package payment handles the VNPay hosted-payment flow from the portal side.
//
// Before redirecting to the gateway, the checkout handler stages the booking
// draft with StagePending and obtains the gateway URL with
// Client.CreatePaymentURL. When the gateway redirects back, a Reconciler
// forwards the verbatim query string to the backend for verification, joins
// the result with the session and decides where the user goes next.
//
// A Result moves from Processing to exactly one of Succeeded or Failed and
// never back. Verification runs once per Reconciler; reloading the return
// page creates a new Reconciler and verifies again.
package payment
