package model

// TargetID identifies a hostile target tracked by the threat aggregator.
type TargetID string

// SiteID identifies a defended site.
type SiteID string

// RelayID identifies a connectivity relay node.
type RelayID string

// SensorID identifies a sensor source, fixed or mobile.
type SensorID string

// PoolID identifies an interceptor pool.
type PoolID string

// InterceptorID identifies an interceptor unit.
type InterceptorID string
