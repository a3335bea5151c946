package dom

import "strconv"

var palette = []string{
	"#FF0000",
	"#00FF00",
	"#0000FF",
	"#FFA500",
	"#800080",
	"#008080",
	"#FF69B4",
	"#4B0082",
	"#FF4500",
	"#2E8B57",
	"#DC143C",
	"#4682B4",
}

func OverlayColor(index int) string {
	return palette[index%len(palette)]
}

// Overlays - нумерованные рамки для всех элементов снимка.
func Overlays(s *Snapshot) []Overlay {
	if s == nil {
		return nil
	}
	out := make([]Overlay, 0, len(s.Elements))
	for _, el := range s.Elements {
		out = append(out, Overlay{
			Index: el.Index,
			Box:   el.Box,
			Color: OverlayColor(el.Index),
			Label: strconv.Itoa(el.Index),
		})
	}
	return out
}
