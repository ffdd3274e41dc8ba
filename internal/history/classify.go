package history

import "leadboard/pkg/models"

const (
	PlaceholderImage       = "[Imagem]"
	PlaceholderVideo       = "[Vídeo]"
	PlaceholderAudio       = "[Áudio]"
	PlaceholderDocument    = "[Documento]"
	PlaceholderSticker     = "[Sticker]"
	PlaceholderUnsupported = "[Mensagem não suportada]"
)

// Payload is the transport-neutral content of an inbound message. A nil
// field means the message does not carry that part.
type Payload struct {
	Conversation string
	ExtendedText *Text
	Image        *Media
	Video        *Media
	Audio        *Media
	Document     *Media
	Sticker      *Media
}

type Text struct {
	Text string
}

type Media struct {
	Caption string
}

// Classify picks exactly one kind for p, first match winning in the order
// conversation, extended text, image, video, audio, document, sticker.
func Classify(p *Payload) (models.MessageKind, string) {
	switch {
	case p == nil:
		return models.KindUnsupported, PlaceholderUnsupported
	case p.Conversation != "":
		return models.KindText, p.Conversation
	case p.ExtendedText != nil:
		return models.KindExtendedText, p.ExtendedText.Text
	case p.Image != nil:
		return models.KindImage, captionOr(p.Image, PlaceholderImage)
	case p.Video != nil:
		return models.KindVideo, captionOr(p.Video, PlaceholderVideo)
	case p.Audio != nil:
		return models.KindAudio, PlaceholderAudio
	case p.Document != nil:
		return models.KindDocument, PlaceholderDocument
	case p.Sticker != nil:
		return models.KindSticker, PlaceholderSticker
	default:
		return models.KindUnsupported, PlaceholderUnsupported
	}
}

func captionOr(m *Media, placeholder string) string {
	if m.Caption != "" {
		return m.Caption
	}
	return placeholder
}
