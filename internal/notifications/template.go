package notifications

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/coursehub/checkout/pkg/queue"
)

var orderConfirmationTmpl = template.Must(template.New("order_confirmation").Parse(`<p>Hello, {{.CustomerName}}!</p>
<p>Your payment of {{.Amount}} {{.Currency}} for order #{{.OrderID}} was received.</p>
<p>You now have access to:</p>
<ul>
{{- range .CourseTitles}}
<li>{{.}}</li>
{{- end}}
</ul>`))

// RenderOrderConfirmation returns the subject and HTML body of the confirmation e-mail.
func RenderOrderConfirmation(p queue.OrderEmailPayload) (subject, body string, err error) {
	var buf bytes.Buffer
	if err := orderConfirmationTmpl.Execute(&buf, p); err != nil {
		return "", "", fmt.Errorf("render order confirmation: %w", err)
	}
	return fmt.Sprintf("Order #%s confirmed", p.OrderID), buf.String(), nil
}
