// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-envelope.
//
// go-envelope is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jeremyhahn/go-envelope/pkg/encryptor"
	"github.com/jeremyhahn/go-envelope/pkg/verifier"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

// PrintMessage prints a sealed message. Text output is the bare message
// so it can be piped into another command.
func (p *Printer) PrintMessage(message string, format verifier.Format) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"message": message,
			"format":  format.String(),
		})
	case OutputFormatText:
		_, err := fmt.Fprintln(p.writer, message)
		return err
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintPayload prints an opened payload. Strings print verbatim in text
// mode; anything else prints as JSON.
func (p *Printer) PrintPayload(payload any) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{"payload": payload})
	case OutputFormatText:
		if s, ok := payload.(string); ok {
			_, err := fmt.Fprintln(p.writer, s)
			return err
		}
		return p.printJSON(payload)
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintMessageInfo prints the result of inspect.
func (p *Printer) PrintMessageInfo(info *MessageInfo) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(info)
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Format:     %s\n", info.Format)
		if info.Purpose != "" {
			fmt.Fprintf(p.writer, "Purpose:    %s\n", info.Purpose)
		}
		if info.ExpiresAt != nil {
			fmt.Fprintf(p.writer, "Expires at: %s\n", info.ExpiresAt.Format(time.RFC3339))
			fmt.Fprintf(p.writer, "Expired:    %t\n", info.Expired)
		} else {
			fmt.Fprintln(p.writer, "Expires at: never")
		}
		payload, err := json.Marshal(info.Payload)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(p.writer, "Payload:    %s\n", payload)
		return err
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintKey prints generated key material in the prefixed form accepted
// by --secret and the config file.
func (p *Printer) PrintKey(encoded string, length int) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"secret": encoded,
			"length": length,
		})
	case OutputFormatText:
		_, err := fmt.Fprintln(p.writer, encoded)
		return err
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"success": true,
			"message": message,
		})
	default:
		_, err := fmt.Fprintln(p.writer, message)
		return err
	}
}

// PrintError prints an error with its reason label.
func (p *Printer) PrintError(err error) error {
	reason := encryptor.Reason(err)
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"success": false,
			"error":   err.Error(),
			"reason":  reason,
		})
	default:
		_, werr := fmt.Fprintf(p.writer, "Error: %v\n", err)
		return werr
	}
}

func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
