package mailer

import (
	"context"
	"errors"
	"io"
	"net"
	"net/textproto"
	"os"

	"github.com/portfolio-site/contactrelay/internal/outcome"
)

// SMTP steps, used as outcome.Error.Op.
const (
	opDial     = "smtp.dial"
	opStartTLS = "smtp.starttls"
	opAuth     = "smtp.auth"
	opMail     = "smtp.mail"
	opRcpt     = "smtp.rcpt"
	opData     = "smtp.data"
	opCompose  = "smtp.compose"
)

// classify maps a failure at step op onto the taxonomy.
func classify(op string, err error) *outcome.Error {
	var existing *outcome.Error
	if errors.As(err, &existing) {
		return existing
	}

	e := &outcome.Error{Op: op, Err: err}
	var tp *textproto.Error
	if errors.As(err, &tp) {
		e.Code = tp.Code
	}
	e.Kind = classifyKind(op, e.Code, err)
	return e
}

func classifyKind(op string, code int, err error) outcome.Kind {
	// 421: the server is closing the channel, whatever the command was.
	if code == 421 || isNetworkFailure(err) {
		return outcome.KindConnectivity
	}

	switch op {
	case opDial, opStartTLS:
		return outcome.KindConnectivity
	case opAuth:
		return outcome.KindAuthentication
	case opMail, opRcpt:
		switch code {
		case 501, 550, 551, 553, 555:
			return outcome.KindAddress
		}
	}
	return outcome.KindDelivery
}

func isNetworkFailure(err error) bool {
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, os.ErrDeadlineExceeded),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed):
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
