package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Status line keys shared by the session and channel layers.
const (
	Connected       = "status.connected"
	Disconnected    = "status.disconnected"
	Reconnecting    = "status.reconnecting"
	ReconnectFailed = "status.reconnect_failed"
	SessionInvalid  = "status.session_invalid"
	MatchHeld       = "status.match_held"
	ChannelClosed   = "status.channel_closed"
)

var supported = []language.Tag{language.English, language.French, language.Spanish}

var matcher = language.NewMatcher(supported)

var messages = map[language.Tag]map[string]string{
	language.English: {
		"status.connecting":       "Connecting…",
		"status.connected":        "Connected",
		"status.waiting":          "Waiting for opponent…",
		"status.in_progress":      "Match in progress",
		"status.won":              "You won!",
		"status.lost":             "You lost.",
		"status.finished":         "Match over",
		"status.server_error":     "Server error: %s",
		"status.disconnected":     "Connection lost",
		"status.reconnecting":     "Reconnecting (attempt %d, in %v)…",
		"status.reconnect_failed": "Could not reconnect. Restart to try again.",
		"status.session_invalid":  "Session expired. Sign in at %s",
		"status.match_held":       "A match is already in progress",
		"status.channel_closed":   "Not connected",
		"status.abandoned":        "The match was not resumed. Create or join a new one.",
	},
	language.French: {
		"status.connecting":       "Connexion…",
		"status.connected":        "Connecté",
		"status.waiting":          "En attente d'un adversaire…",
		"status.in_progress":      "Partie en cours",
		"status.won":              "Vous avez gagné !",
		"status.lost":             "Vous avez perdu.",
		"status.finished":         "Partie terminée",
		"status.server_error":     "Erreur du serveur : %s",
		"status.disconnected":     "Connexion perdue",
		"status.reconnecting":     "Reconnexion (tentative %d, dans %v)…",
		"status.reconnect_failed": "Reconnexion impossible. Relancez pour réessayer.",
		"status.session_invalid":  "Session expirée. Connectez-vous sur %s",
		"status.match_held":       "Une partie est déjà en cours",
		"status.channel_closed":   "Non connecté",
		"status.abandoned":        "La partie n'a pas repris. Créez-en ou rejoignez-en une autre.",
	},
	language.Spanish: {
		"status.connecting":       "Conectando…",
		"status.connected":        "Conectado",
		"status.waiting":          "Esperando rival…",
		"status.in_progress":      "Partida en curso",
		"status.won":              "¡Has ganado!",
		"status.lost":             "Has perdido.",
		"status.finished":         "Partida terminada",
		"status.server_error":     "Error del servidor: %s",
		"status.disconnected":     "Conexión perdida",
		"status.reconnecting":     "Reconectando (intento %d, en %v)…",
		"status.reconnect_failed": "No se pudo reconectar. Reinicia para volver a intentarlo.",
		"status.session_invalid":  "Sesión caducada. Inicia sesión en %s",
		"status.match_held":       "Ya hay una partida en curso",
		"status.channel_closed":   "Sin conexión",
		"status.abandoned":        "La partida no se reanudó. Crea o únete a otra.",
	},
}

// Translator resolves status keys to text in one language. Unknown keys are
// returned as-is.
type Translator struct {
	tag     language.Tag
	printer *message.Printer
}

// New picks the closest supported language to lang, falling back to English.
func New(lang string) (*Translator, error) {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, msgs := range messages {
		for key, msg := range msgs {
			if err := b.SetString(tag, key, msg); err != nil {
				return nil, err
			}
		}
	}
	tag, _ := language.MatchStrings(matcher, lang)
	base, _ := tag.Base()
	tag, _ = language.Compose(base)
	return &Translator{tag: tag, printer: message.NewPrinter(tag, message.Catalog(b))}, nil
}

func (t *Translator) Language() language.Tag { return t.tag }

func (t *Translator) T(key string, args ...any) string {
	return t.printer.Sprintf(key, args...)
}
