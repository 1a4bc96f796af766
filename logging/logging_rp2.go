//go:build rp2040 || rp2350

package logging

import (
	"io"
	"log/slog"
	"machine"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
)

// New returns a plain text logger writing to w.
func New(level slog.Level, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Console configures UART0 on GP0/GP1 at 115200 baud and returns it as the
// log sink, so logs survive without USB CDC.
func Console() io.Writer {
	_ = uartx.UART0.Configure(uartx.UARTConfig{
		BaudRate: 115200,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	})
	return uartx.UART0
}
