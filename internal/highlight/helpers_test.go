package highlight

import "marginalia/internal/domain/models/annotation"

func positionOf(start, end int) annotation.Position {
	return annotation.Position{StartOffset: start, EndOffset: end}
}
