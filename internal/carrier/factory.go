package carrier

import (
	"fashion-backend/internal/errors"
	"fmt"
	"sync"
)

// Factory 按名称解析承运商实现。
// 名称唯一，重复注册会被拒绝，因此不存在多个实现同时匹配的情况。
type Factory struct {
	mu       sync.RWMutex
	services map[string]Service
	names    []string
}

// aliased 承运商的其他名称，与主名称一起注册
type aliased interface {
	Aliases() []string
}

func NewFactory(services ...Service) (*Factory, error) {
	f := &Factory{services: make(map[string]Service)}
	for _, s := range services {
		if err := f.Register(s); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Register 注册承运商实现
func (f *Factory) Register(s Service) error {
	name := NormalizeName(s.Name())
	if name == "" {
		return errors.New(errors.ErrBadRequest, "carrier name is required")
	}

	keys := []string{name}
	if a, ok := s.(aliased); ok {
		for _, alias := range a.Aliases() {
			if alias = NormalizeName(alias); alias != "" && alias != name {
				keys = append(keys, alias)
			}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		if _, exists := f.services[k]; exists {
			return errors.New(errors.ErrResourceExists, fmt.Sprintf("carrier %q already registered", k))
		}
	}
	for _, k := range keys {
		f.services[k] = s
	}
	f.names = append(f.names, name)
	return nil
}

// Resolve 返回支持该名称的承运商实现
func (f *Factory) Resolve(carrierName string) (Service, error) {
	name := NormalizeName(carrierName)
	if name == "" {
		return nil, errors.New(errors.ErrBadRequest, "carrier name is required")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.services) == 0 {
		return nil, errors.New(errors.ErrServiceUnavailable, "no carrier integrations configured")
	}
	s, ok := f.services[name]
	if !ok || !s.Supports(name) {
		return nil, errors.New(errors.ErrUnsupportedCarrier, fmt.Sprintf("unsupported carrier: %s", carrierName))
	}
	return s, nil
}

// Names 按注册顺序返回承运商名称
func (f *Factory) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, len(f.names))
	copy(out, f.names)
	return out
}
