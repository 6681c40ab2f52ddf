package mailer

import (
	"fmt"
	"html"
	"time"
)

func minutes(d time.Duration) int {
	return int(d / time.Minute)
}

// VerificationCode is the 2FA email sent on login and resend.
func VerificationCode(appName, to, code string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Tu código de verificación - %s", appName),
		HTML: fmt.Sprintf(
			"<p>Tu código es: <b>%s</b></p><p>Vence en %d minutos.</p>",
			html.EscapeString(code), minutes(ttl)),
	}
}

// PasswordReset carries the single-use reset link.
func PasswordReset(appName, to, link string, ttl time.Duration) Message {
	escaped := html.EscapeString(link)
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Restablecer tu contraseña - %s", appName),
		HTML: fmt.Sprintf(
			"<p>Para restablecer tu contraseña haz clic aquí:</p>"+
				"<p><a href=\"%s\">%s</a></p>"+
				"<p>Este enlace vence en %d minutos. Si no solicitaste el cambio, ignora este correo.</p>",
			escaped, escaped, minutes(ttl)),
	}
}
