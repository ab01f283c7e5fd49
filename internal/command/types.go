package command

import "time"

// StatusInfo carries the optional detail a station adds to a status answer.
type StatusInfo struct {
	ReasonCode     string `json:"reasonCode" validate:"required,max=20"`
	AdditionalInfo string `json:"additionalInfo,omitempty" validate:"max=512"`
}

// EVSERef addresses an EVSE and optionally one of its connectors.
type EVSERef struct {
	ID          int  `json:"id" validate:"min=0"`
	ConnectorID *int `json:"connectorId,omitempty" validate:"omitempty,min=0"`
}

// Component names a device model component.
type Component struct {
	Name     string   `json:"name" validate:"required,max=50"`
	Instance string   `json:"instance,omitempty" validate:"max=50"`
	EVSE     *EVSERef `json:"evse,omitempty"`
}

// Variable names a device model variable.
type Variable struct {
	Name     string `json:"name" validate:"required,max=50"`
	Instance string `json:"instance,omitempty" validate:"max=50"`
}

// ComponentVariable pairs a component with an optional variable.
type ComponentVariable struct {
	Component Component `json:"component" validate:"required"`
	Variable  *Variable `json:"variable,omitempty"`
}

// Firmware describes a firmware image to install.
type Firmware struct {
	Location           string     `json:"location" validate:"required,url,max=512"`
	RetrieveDateTime   time.Time  `json:"retrieveDateTime" validate:"required"`
	InstallDateTime    *time.Time `json:"installDateTime,omitempty"`
	SigningCertificate string     `json:"signingCertificate,omitempty" validate:"max=5500"`
	Signature          string     `json:"signature,omitempty" validate:"max=800"`
}

// LogParameters describes the log upload of GetLog.
type LogParameters struct {
	RemoteLocation  string     `json:"remoteLocation" validate:"required,max=512"`
	OldestTimestamp *time.Time `json:"oldestTimestamp,omitempty"`
	LatestTimestamp *time.Time `json:"latestTimestamp,omitempty"`
}

// CertificateHashData identifies an installed certificate.
type CertificateHashData struct {
	HashAlgorithm  string `json:"hashAlgorithm" validate:"required,oneof=SHA256 SHA384 SHA512"`
	IssuerNameHash string `json:"issuerNameHash" validate:"required,max=128"`
	IssuerKeyHash  string `json:"issuerKeyHash" validate:"required,max=128"`
	SerialNumber   string `json:"serialNumber" validate:"required,max=40"`
}

// CertificateHashDataChain is one installed certificate with its child certificates.
type CertificateHashDataChain struct {
	CertificateType          string                `json:"certificateType"`
	CertificateHashData      CertificateHashData   `json:"certificateHashData"`
	ChildCertificateHashData []CertificateHashData `json:"childCertificateHashData,omitempty"`
}

// IDTokenInfo is the authorization status of an id token.
type IDTokenInfo struct {
	Status              string     `json:"status" validate:"required,oneof=Accepted Blocked ConcurrentTx Expired Invalid NoCredit NotAllowedTypeEVSE NotAtThisLocation NotAtThisTime Unknown"`
	CacheExpiryDateTime *time.Time `json:"cacheExpiryDateTime,omitempty"`
	ChargingPriority    int        `json:"chargingPriority,omitempty" validate:"min=-9,max=9"`
}

// ChargingSchedulePeriod is one step of a charging schedule.
type ChargingSchedulePeriod struct {
	StartPeriod  int     `json:"startPeriod" validate:"min=0"`
	Limit        float64 `json:"limit" validate:"min=0"`
	NumberPhases *int    `json:"numberPhases,omitempty" validate:"omitempty,min=1,max=3"`
}

// ChargingSchedule is a limit profile over time.
type ChargingSchedule struct {
	ID                     int                      `json:"id"`
	StartSchedule          *time.Time               `json:"startSchedule,omitempty"`
	Duration               *int                     `json:"duration,omitempty" validate:"omitempty,min=0"`
	ChargingRateUnit       string                   `json:"chargingRateUnit" validate:"required,oneof=W A"`
	MinChargingRate        *float64                 `json:"minChargingRate,omitempty"`
	ChargingSchedulePeriod []ChargingSchedulePeriod `json:"chargingSchedulePeriod" validate:"required,min=1,max=1024,dive"`
}

// ChargingProfile is a charging limit definition installed on a station.
type ChargingProfile struct {
	ID                     int                `json:"id"`
	StackLevel             int                `json:"stackLevel" validate:"min=0"`
	ChargingProfilePurpose string             `json:"chargingProfilePurpose" validate:"required,oneof=ChargingStationExternalConstraints ChargingStationMaxProfile TxDefaultProfile TxProfile"`
	ChargingProfileKind    string             `json:"chargingProfileKind" validate:"required,oneof=Absolute Recurring Relative"`
	RecurrencyKind         string             `json:"recurrencyKind,omitempty" validate:"omitempty,oneof=Daily Weekly"`
	ValidFrom              *time.Time         `json:"validFrom,omitempty"`
	ValidTo                *time.Time         `json:"validTo,omitempty"`
	TransactionID          string             `json:"transactionId,omitempty" validate:"max=36"`
	ChargingSchedule       []ChargingSchedule `json:"chargingSchedule" validate:"required,min=1,max=3,dive"`
}

// MessageContent is the text of a display message.
type MessageContent struct {
	Format   string `json:"format" validate:"required,oneof=ASCII HTML URI UTF8"`
	Language string `json:"language,omitempty" validate:"max=8"`
	Content  string `json:"content" validate:"required,max=512"`
}

// MessageInfo is a message shown on the station display.
type MessageInfo struct {
	ID            int            `json:"id"`
	Priority      string         `json:"priority" validate:"required,oneof=AlwaysFront InFront NormalCycle"`
	State         string         `json:"state,omitempty" validate:"omitempty,oneof=Charging Faulted Idle Unavailable"`
	StartDateTime *time.Time     `json:"startDateTime,omitempty"`
	EndDateTime   *time.Time     `json:"endDateTime,omitempty"`
	TransactionID string         `json:"transactionId,omitempty" validate:"max=36"`
	Message       MessageContent `json:"message" validate:"required"`
	Display       *Component     `json:"display,omitempty"`
}

// NetworkConnectionProfile describes how a station reaches the node.
type NetworkConnectionProfile struct {
	OCPPVersion     string `json:"ocppVersion" validate:"required,oneof=OCPP12 OCPP15 OCPP16 OCPP20"`
	OCPPTransport   string `json:"ocppTransport" validate:"required,oneof=JSON SOAP"`
	OCPPCsmsURL     string `json:"ocppCsmsUrl" validate:"required,url,max=512"`
	MessageTimeout  int    `json:"messageTimeout" validate:"min=0"`
	SecurityProfile int    `json:"securityProfile" validate:"min=0,max=3"`
	OCPPInterface   string `json:"ocppInterface" validate:"required,oneof=Wired0 Wired1 Wired2 Wired3 Wireless0 Wireless1 Wireless2 Wireless3"`
}
