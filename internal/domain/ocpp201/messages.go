package ocpp201

// ChargingStation describes the BootNotification reporter, per §9.3 of
// the OCPP 2.0.1 core profile, narrowed to the fields this handler uses.
type ChargingStation struct {
	SerialNumber    string `json:"serialNumber,omitempty" validate:"omitempty,max=25"`
	Model           string `json:"model" validate:"required,max=20"`
	VendorName      string `json:"vendorName" validate:"required,max=20"`
	FirmwareVersion string `json:"firmwareVersion,omitempty" validate:"omitempty,max=50"`
	Modem           *Modem `json:"modem,omitempty"`
}

// Modem carries the station's cellular identifiers.
type Modem struct {
	Iccid string `json:"iccid,omitempty"`
	Imsi  string `json:"imsi,omitempty"`
}

// BootNotificationRequest is sent once at connect and on any subsequent
// reboot.
type BootNotificationRequest struct {
	Reason          string          `json:"reason" validate:"required"`
	ChargingStation ChargingStation `json:"chargingStation" validate:"required"`
}

// BootNotificationResponse accepts or defers registration.
type BootNotificationResponse struct {
	CurrentTime DateTime           `json:"currentTime"`
	Interval    int                `json:"interval"`
	Status      RegistrationStatus `json:"status"`
	StatusInfo  *StatusInfo        `json:"statusInfo,omitempty"`
}

// StatusInfo supplements a status field with a machine-readable reason.
type StatusInfo struct {
	ReasonCode     string `json:"reasonCode"`
	AdditionalInfo string `json:"additionalInfo,omitempty"`
}

// StatusNotificationRequest reports a connector's operational status.
type StatusNotificationRequest struct {
	Timestamp       DateTime        `json:"timestamp" validate:"required"`
	ConnectorStatus ConnectorStatus `json:"connectorStatus" validate:"required"`
	EvseId          int             `json:"evseId" validate:"required"`
	ConnectorId     int             `json:"connectorId" validate:"required"`
}

// StatusNotificationResponse has no fields in this profile.
type StatusNotificationResponse struct{}

// HeartbeatRequest carries no fields.
type HeartbeatRequest struct{}

// HeartbeatResponse echoes back the CSMS clock.
type HeartbeatResponse struct {
	CurrentTime DateTime `json:"currentTime"`
}

// IdToken identifies a driver credential.
type IdToken struct {
	IdToken string `json:"idToken" validate:"required,max=36"`
	Type    string `json:"type" validate:"required"`
}

// IdTokenInfo is the authorization verdict returned from Authorize and
// TransactionEvent(Started).
type IdTokenInfo struct {
	Status              AuthorizationStatus `json:"status"`
	CacheExpiryDateTime *DateTime           `json:"cacheExpiryDateTime,omitempty"`
	GroupIdToken        *IdToken            `json:"groupIdToken,omitempty"`
	PersonalMessage     *MessageContent     `json:"personalMessage,omitempty"`
}

// MessageContent is a free-text display message with a format/language tag.
type MessageContent struct {
	Format   string `json:"format"`
	Language string `json:"language,omitempty"`
	Content  string `json:"content" validate:"required,max=512"`
}

// AuthorizeRequest asks whether an idToken may start or continue charging.
type AuthorizeRequest struct {
	IdToken IdToken `json:"idToken" validate:"required"`
}

// AuthorizeResponse carries the verdict.
type AuthorizeResponse struct {
	IdTokenInfo IdTokenInfo `json:"idTokenInfo"`
}

// EVSE identifies an Electric Vehicle Supply Equipment unit and,
// optionally, one of its connectors.
type EVSE struct {
	Id          int `json:"id"`
	ConnectorId int `json:"connectorId,omitempty"`
}

// Transaction is TransactionEventRequest's embedded transaction summary.
type Transaction struct {
	TransactionId     string        `json:"transactionId" validate:"required"`
	ChargingState     ChargingState `json:"chargingState,omitempty"`
	TimeSpentCharging int           `json:"timeSpentCharging,omitempty"`
	StoppedReason     string        `json:"stoppedReason,omitempty"`
	RemoteStartId     int           `json:"remoteStartId,omitempty"`
}

// MeterValue is one timestamped bundle of SampledValues, identical in
// shape to its OCPP 1.6 counterpart.
type MeterValue struct {
	Timestamp    DateTime       `json:"timestamp" validate:"required"`
	SampledValue []SampledValue `json:"sampledValue" validate:"required,min=1"`
}

// SampledValue is a single measured quantity.
type SampledValue struct {
	Value         float64        `json:"value"`
	Context       string         `json:"context,omitempty"`
	Measurand     *Measurand     `json:"measurand,omitempty"`
	Phase         string         `json:"phase,omitempty"`
	Location      string         `json:"location,omitempty"`
	UnitOfMeasure *UnitOfMeasure `json:"unitOfMeasure,omitempty"`
}

// UnitOfMeasure carries the unit string and a power-of-ten multiplier.
type UnitOfMeasure struct {
	Unit       string `json:"unit,omitempty"`
	Multiplier int    `json:"multiplier,omitempty"`
}

// TransactionEventRequest is the single action 2.0.1 uses for the whole
// of a transaction's lifecycle (Started/Updated/Ended), disambiguated by
// EventType.
type TransactionEventRequest struct {
	EventType         TransactionEventType `json:"eventType" validate:"required"`
	Timestamp         DateTime             `json:"timestamp" validate:"required"`
	TriggerReason     TriggerReason        `json:"triggerReason" validate:"required"`
	SeqNo             int                  `json:"seqNo"`
	TransactionInfo   Transaction          `json:"transactionInfo" validate:"required"`
	Offline           bool                 `json:"offline,omitempty"`
	ReservationId     int                  `json:"reservationId,omitempty"`
	Evse              *EVSE                `json:"evse,omitempty"`
	IdToken           *IdToken             `json:"idToken,omitempty"`
	MeterValue        []MeterValue         `json:"meterValue,omitempty"`
}

// TransactionEventResponse optionally carries a running cost and a fresh
// authorization verdict (for Started events).
type TransactionEventResponse struct {
	TotalCost              float64         `json:"totalCost,omitempty"`
	IdTokenInfo            *IdTokenInfo    `json:"idTokenInfo,omitempty"`
	UpdatedPersonalMessage *MessageContent `json:"updatedPersonalMessage,omitempty"`
}

// MeterValuesRequest reports out-of-band meter samples (outside a
// transaction's own TransactionEvent stream).
type MeterValuesRequest struct {
	EvseId     int          `json:"evseId" validate:"required"`
	MeterValue []MeterValue `json:"meterValue" validate:"required,min=1"`
}

// MeterValuesResponse has no fields in this profile.
type MeterValuesResponse struct{}

// DataTransferRequest carries a vendor-defined payload outside the
// standard message set.
type DataTransferRequest struct {
	VendorId  string      `json:"vendorId" validate:"required"`
	MessageId string      `json:"messageId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// DataTransferStatus is DataTransferResponse's status field.
type DataTransferStatus string

const (
	DataTransferStatusAccepted         DataTransferStatus = "Accepted"
	DataTransferStatusRejected         DataTransferStatus = "Rejected"
	DataTransferStatusUnknownMessageId DataTransferStatus = "UnknownMessageId"
	DataTransferStatusUnknownVendorId  DataTransferStatus = "UnknownVendorId"
)

// DataTransferResponse answers a vendor extension message.
type DataTransferResponse struct {
	Status DataTransferStatus `json:"status"`
	Data   interface{}        `json:"data,omitempty"`
}

// FirmwareStatus is FirmwareStatusNotificationRequest's status field.
type FirmwareStatus string

const (
	FirmwareStatusDownloaded         FirmwareStatus = "Downloaded"
	FirmwareStatusDownloadFailed     FirmwareStatus = "DownloadFailed"
	FirmwareStatusDownloading        FirmwareStatus = "Downloading"
	FirmwareStatusIdle               FirmwareStatus = "Idle"
	FirmwareStatusInstallationFailed FirmwareStatus = "InstallationFailed"
	FirmwareStatusInstalling         FirmwareStatus = "Installing"
	FirmwareStatusInstalled          FirmwareStatus = "Installed"
)

// FirmwareStatusNotificationRequest reports firmware update progress.
type FirmwareStatusNotificationRequest struct {
	Status       FirmwareStatus `json:"status" validate:"required"`
	RequestId    int            `json:"requestId,omitempty"`
}

// FirmwareStatusNotificationResponse has no fields in this profile.
type FirmwareStatusNotificationResponse struct{}

// SecurityEventNotificationRequest reports a security-relevant event
// detected on the station (tamper, failed firmware signature, etc.).
type SecurityEventNotificationRequest struct {
	Type      string    `json:"type" validate:"required"`
	Timestamp DateTime  `json:"timestamp" validate:"required"`
	TechInfo  *string   `json:"techInfo,omitempty"`
}

// SecurityEventNotificationResponse has no fields in this profile.
type SecurityEventNotificationResponse struct{}

// EventData is one entry of a NotifyEventRequest batch.
type EventData struct {
	EventId      int      `json:"eventId"`
	Timestamp    DateTime `json:"timestamp"`
	Trigger      string   `json:"trigger"`
	ActualValue  string   `json:"actualValue"`
	EventNotificationType string `json:"eventNotificationType"`
	Component    Component  `json:"component"`
	Variable     Variable   `json:"variable"`
}

// Component identifies a physical or logical device component a Variable
// belongs to.
type Component struct {
	Name     string  `json:"name"`
	Instance string  `json:"instance,omitempty"`
	EVSE     *EVSE   `json:"evse,omitempty"`
}

// Variable identifies a reportable or settable attribute on a Component.
type Variable struct {
	Name     string `json:"name"`
	Instance string `json:"instance,omitempty"`
}

// NotifyEventRequest streams device-model condition changes (connector
// stuck, EV plug fault, etc.) outside the StatusNotification vocabulary.
type NotifyEventRequest struct {
	GeneratedAt DateTime    `json:"generatedAt" validate:"required"`
	SeqNo       int         `json:"seqNo"`
	Tbc         bool        `json:"tbc,omitempty"`
	EventData   []EventData `json:"eventData" validate:"required,min=1"`
}

// NotifyEventResponse has no fields in this profile.
type NotifyEventResponse struct{}

// MonitoringData is one entry of a NotifyMonitoringReportRequest batch.
type MonitoringData struct {
	Component Component `json:"component"`
	Variable  Variable  `json:"variable"`
}

// NotifyMonitoringReportRequest answers a GetMonitoringReport command (or
// reports a spontaneous monitor trip).
type NotifyMonitoringReportRequest struct {
	RequestId   int              `json:"requestId"`
	GeneratedAt DateTime         `json:"generatedAt" validate:"required"`
	SeqNo       int              `json:"seqNo"`
	Tbc         bool             `json:"tbc,omitempty"`
	Monitor     []MonitoringData `json:"monitor,omitempty"`
}

// NotifyMonitoringReportResponse has no fields in this profile.
type NotifyMonitoringReportResponse struct{}

// ReportData is one entry of a NotifyReportRequest batch.
type ReportData struct {
	Component Component `json:"component"`
	Variable  Variable  `json:"variable"`
	VariableAttribute []VariableAttribute `json:"variableAttribute"`
}

// VariableAttribute is a single reported value for a Component/Variable pair.
type VariableAttribute struct {
	Type     string `json:"type,omitempty"`
	Value    string `json:"value,omitempty"`
	Mutable  bool   `json:"mutable,omitempty"`
	Persistent bool `json:"persistent,omitempty"`
}

// NotifyReportRequest answers a GetReport/GetBaseReport command.
type NotifyReportRequest struct {
	RequestId   int          `json:"requestId"`
	GeneratedAt DateTime     `json:"generatedAt" validate:"required"`
	SeqNo       int          `json:"seqNo"`
	Tbc         bool         `json:"tbc,omitempty"`
	ReportData  []ReportData `json:"reportData,omitempty"`
}

// NotifyReportResponse has no fields in this profile.
type NotifyReportResponse struct{}

// ChargingSchedulePeriod is one slice of a ChargingSchedule's limit curve.
type ChargingSchedulePeriod struct {
	StartPeriod int     `json:"startPeriod"`
	Limit       float64 `json:"limit"`
}

// ChargingSchedule is a single limit curve within a ChargingProfile.
type ChargingSchedule struct {
	Id                     int                      `json:"id"`
	ChargingRateUnit       string                   `json:"chargingRateUnit"`
	ChargingSchedulePeriod []ChargingSchedulePeriod `json:"chargingSchedulePeriod"`
}

// ChargingProfile mirrors the 1.6 shape with 2.0.1's field names.
type ChargingProfile struct {
	Id                     int                `json:"id"`
	StackLevel             int                `json:"stackLevel"`
	ChargingProfilePurpose string             `json:"chargingProfilePurpose"`
	ChargingProfileKind    string             `json:"chargingProfileKind"`
	ChargingSchedule       []ChargingSchedule `json:"chargingSchedule"`
	TransactionId          string             `json:"transactionId,omitempty"`
}

// SetChargingProfileRequest installs a charging limit curve on one EVSE.
type SetChargingProfileRequest struct {
	EvseId          int             `json:"evseId"`
	ChargingProfile ChargingProfile `json:"chargingProfile" validate:"required"`
}

// SetChargingProfileResponse reports whether the profile was accepted.
type SetChargingProfileResponse struct {
	Status     string      `json:"status"`
	StatusInfo *StatusInfo `json:"statusInfo,omitempty"`
}

// ReportChargingProfilesRequest answers a GetChargingProfiles command.
type ReportChargingProfilesRequest struct {
	RequestId      int               `json:"requestId"`
	ChargingLimitSource string       `json:"chargingLimitSource"`
	Tbc            bool              `json:"tbc,omitempty"`
	EvseId         int               `json:"evseId,omitempty"`
	ChargingProfile []ChargingProfile `json:"chargingProfile" validate:"required,min=1"`
}

// ReportChargingProfilesResponse has no fields in this profile.
type ReportChargingProfilesResponse struct{}

// RequestStartTransactionRequest is a server-initiated remote start.
type RequestStartTransactionRequest struct {
	IdToken       IdToken          `json:"idToken" validate:"required"`
	RemoteStartId int              `json:"remoteStartId"`
	EvseId        int              `json:"evseId,omitempty"`
	ChargingProfile *ChargingProfile `json:"chargingProfile,omitempty"`
}

// RequestStartTransactionResponse acknowledges or rejects the remote start.
type RequestStartTransactionResponse struct {
	Status        string      `json:"status"`
	TransactionId string      `json:"transactionId,omitempty"`
	StatusInfo    *StatusInfo `json:"statusInfo,omitempty"`
}

// RequestStopTransactionRequest is a server-initiated remote stop.
type RequestStopTransactionRequest struct {
	TransactionId string `json:"transactionId" validate:"required"`
}

// RequestStopTransactionResponse acknowledges or rejects the remote stop.
type RequestStopTransactionResponse struct {
	Status     string      `json:"status"`
	StatusInfo *StatusInfo `json:"statusInfo,omitempty"`
}

// ResetRequest asks the station to reboot, optionally narrowed to one EVSE.
type ResetRequest struct {
	Type   ResetType `json:"type" validate:"required"`
	EvseId int       `json:"evseId,omitempty"`
}

// ResetResponse acknowledges or rejects the reset request.
type ResetResponse struct {
	Status     string      `json:"status"`
	StatusInfo *StatusInfo `json:"statusInfo,omitempty"`
}

// UnlockConnectorRequest asks the station to release a physically locked
// connector.
type UnlockConnectorRequest struct {
	EvseId      int `json:"evseId" validate:"required"`
	ConnectorId int `json:"connectorId" validate:"required"`
}

// UnlockConnectorResponse reports whether the unlock succeeded.
type UnlockConnectorResponse struct {
	Status string `json:"status"`
}

// ChangeAvailabilityRequest toggles a connector or the whole station
// between Operative/Inoperative.
type ChangeAvailabilityRequest struct {
	OperationalStatus OperationalStatus `json:"operationalStatus" validate:"required"`
	Evse              *EVSE             `json:"evse,omitempty"`
}

// ChangeAvailabilityResponse acknowledges or schedules the change.
type ChangeAvailabilityResponse struct {
	Status string `json:"status"`
}

// SetVariableData is one attribute SetVariablesRequest asks to change.
type SetVariableData struct {
	Component    Component `json:"component"`
	Variable     Variable  `json:"variable"`
	AttributeValue string  `json:"attributeValue"`
}

// SetVariablesRequest is 2.0.1's generalized configuration-write command,
// superseding 1.6's single-key ChangeConfiguration.
type SetVariablesRequest struct {
	SetVariableData []SetVariableData `json:"setVariableData" validate:"required,min=1"`
}

// SetVariableResult is one entry of SetVariablesResponse.
type SetVariableResult struct {
	Component Component         `json:"component"`
	Variable  Variable          `json:"variable"`
	Status    SetVariableStatus `json:"attributeStatus"`
}

// SetVariablesResponse reports a per-attribute write status.
type SetVariablesResponse struct {
	SetVariableResult []SetVariableResult `json:"setVariableResult"`
}

// GetVariableData is one attribute GetVariablesRequest asks to read.
type GetVariableData struct {
	Component Component `json:"component"`
	Variable  Variable  `json:"variable"`
}

// GetVariablesRequest is 2.0.1's generalized configuration-read command,
// superseding 1.6's GetConfiguration.
type GetVariablesRequest struct {
	GetVariableData []GetVariableData `json:"getVariableData" validate:"required,min=1"`
}

// GetVariableResult is one entry of GetVariablesResponse.
type GetVariableResult struct {
	Component     Component         `json:"component"`
	Variable      Variable          `json:"variable"`
	Status        GetVariableStatus `json:"attributeStatus"`
	AttributeValue string           `json:"attributeValue,omitempty"`
}

// GetVariablesResponse reports a per-attribute read result.
type GetVariablesResponse struct {
	GetVariableResult []GetVariableResult `json:"getVariableResult"`
}

// ClearCacheRequest asks the station to drop its cached authorization list.
type ClearCacheRequest struct{}

// ClearCacheResponse reports whether the cache was cleared.
type ClearCacheResponse struct {
	Status string `json:"status"`
}

// ClearChargingProfileRequest withdraws one or more installed profiles.
type ClearChargingProfileRequest struct {
	ChargingProfileId int                       `json:"chargingProfileId,omitempty"`
	ChargingProfileCriteria *ChargingProfileCriteria `json:"chargingProfileCriteria,omitempty"`
}

// ChargingProfileCriteria narrows a ClearChargingProfile request by
// purpose/stack level/EVSE instead of a specific profile ID.
type ChargingProfileCriteria struct {
	EvseId                 int    `json:"evseId,omitempty"`
	ChargingProfilePurpose string `json:"chargingProfilePurpose,omitempty"`
	StackLevel             int    `json:"stackLevel,omitempty"`
}

// ClearChargingProfileResponse reports whether any profile matched.
type ClearChargingProfileResponse struct {
	Status string `json:"status"`
}

// TriggerMessageRequest asks the station to (re-)send a specific message
// type out of band.
type TriggerMessageRequest struct {
	RequestedMessage string `json:"requestedMessage" validate:"required"`
	Evse             *EVSE  `json:"evse,omitempty"`
}

// TriggerMessageResponse acknowledges or refuses the trigger.
type TriggerMessageResponse struct {
	Status string `json:"status"`
}

// ReserveNowRequest reserves a connector for a specific idToken until
// ExpiryDateTime.
type ReserveNowRequest struct {
	Id             int      `json:"id" validate:"required"`
	ExpiryDateTime DateTime `json:"expiryDateTime" validate:"required"`
	IdToken        IdToken  `json:"idToken" validate:"required"`
	Evse           *EVSE    `json:"evse,omitempty"`
}

// ReserveNowResponse reports whether the reservation was accepted.
type ReserveNowResponse struct {
	Status     string      `json:"status"`
	StatusInfo *StatusInfo `json:"statusInfo,omitempty"`
}

// CancelReservationRequest withdraws a still-active reservation.
type CancelReservationRequest struct {
	ReservationId int `json:"reservationId" validate:"required"`
}

// CancelReservationResponse reports whether a matching reservation existed.
type CancelReservationResponse struct {
	Status string `json:"status"`
}
