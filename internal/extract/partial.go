package extract

import (
	"time"

	"backdrop/internal/mediatypes"
)

// Partial accumulates metadata across extractors. A nil field has not been
// found yet.
type Partial struct {
	Filesize         *int64
	CreationDate     *time.Time
	ModificationDate *time.Time
	Width            *uint32
	Height           *uint32
	Specific         *mediatypes.SpecificMetadata
	Other            mediatypes.OtherMetadata
}

// Complete reports whether the fields the chain is looking for are all set.
func (p *Partial) Complete() bool {
	return p.Width != nil && p.Height != nil && p.Specific != nil
}

// SetResolution records a resolution. Zero sides are ignored.
func (p *Partial) SetResolution(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	p.Width = &width
	p.Height = &height
}

// SetSpecific records the kind-specific metadata.
func (p *Partial) SetSpecific(s mediatypes.SpecificMetadata) {
	p.Specific = &s
}

// AddOther records one long-tail metadata entry under key, using key as the
// display name. Empty values are dropped.
func (p *Partial) AddOther(key, value string) {
	if key == "" || value == "" {
		return
	}
	if p.Other == nil {
		p.Other = make(mediatypes.OtherMetadata)
	}
	if _, exists := p.Other[key]; exists {
		return
	}
	p.Other[key] = mediatypes.NewOtherMetadataValue(key, value)
}

// Merge folds src into p. Without overwrite a field is only taken from src
// when p does not have it yet; with overwrite every field src carries wins.
// Other is merged per key under the same rule.
func (p *Partial) Merge(src *Partial, overwrite bool) {
	if src == nil {
		return
	}

	p.Filesize = pick(p.Filesize, src.Filesize, overwrite)
	p.CreationDate = pick(p.CreationDate, src.CreationDate, overwrite)
	p.ModificationDate = pick(p.ModificationDate, src.ModificationDate, overwrite)
	p.Width = pick(p.Width, src.Width, overwrite)
	p.Height = pick(p.Height, src.Height, overwrite)
	p.Specific = pick(p.Specific, src.Specific, overwrite)

	if len(src.Other) == 0 {
		return
	}
	if p.Other == nil {
		p.Other = make(mediatypes.OtherMetadata, len(src.Other))
	}
	for k, v := range src.Other {
		if _, exists := p.Other[k]; exists && !overwrite {
			continue
		}
		p.Other[k] = v
	}
}

func pick[T any](have, incoming *T, overwrite bool) *T {
	if incoming == nil {
		return have
	}
	if have == nil || overwrite {
		return incoming
	}
	return have
}
