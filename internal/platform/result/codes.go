package result

// Failure codes shared by the orchestrators. Codes are part of the public
// contract with the API layer and must not be renamed.
const (
	CodeTenantInvalid = "tenant.invalid"

	CodePatientNotFound    = "patient.notFound"
	CodePatientForbidden   = "patient.forbidden"
	CodePatientEmailExists = "patient.email.exists"
	CodeDoctorNotFound     = "doctor.notFound"

	CodeUserNotFound            = "user.notFound"
	CodeUserForbidden           = "user.forbidden"
	CodeUserEmailExists         = "user.email.exists"
	CodeUserSetupTokenInvalid   = "user.setupToken.invalid"
	CodeUserSetupTokenExpired   = "user.setupToken.expired"
	CodeRoleNotFound            = "role.notFound"
	CodeRoleExists              = "role.exists"
	CodeValidationRoleName      = "validation.role.name"
	CodeValidationPasswordShort = "validation.password.tooShort"
	CodeValidationRequest       = "validation.request"

	CodeValidationProspectFirstName = "validation.prospect.firstName"
	CodeValidationProspectLastName  = "validation.prospect.lastName"
	CodeValidationProspectPhone     = "validation.prospect.phone"
	CodeValidationTitle             = "validation.title.required"
	CodeValidationStartsAt          = "validation.startsAt.required"
	CodeValidationEndsAt            = "validation.endsAt.required"
	CodeValidationEndsBeforeStart   = "validation.endsAt.beforeStart"
	CodeValidationFeeNegative       = "validation.consultationFee.negative"
	CodeValidationCurrencyTooLong   = "validation.currency.tooLong"
	CodeValidationStatus            = "validation.status.invalid"
	CodeAppointmentNotFound         = "appointment.notFound"
	CodeAppointmentForbidden        = "appointment.forbidden"

	CodeValidationPaymentMethod         = "validation.paymentMethod.invalid"
	CodeValidationBillingStatus         = "validation.billingStatus.invalid"
	CodeValidationAmountNegative        = "validation.amount.negative"
	CodeValidationInsuranceProviderName = "validation.insuranceProvider.name"
	CodeBillingNotFound                 = "billing.notFound"
	CodeBillingAppointmentNotFound      = "billing.appointment.notFound"
	CodeBillingAppointmentInvalidStatus = "billing.appointment.invalidStatus"
	CodeBillingDuplicate                = "billing.duplicate"
	CodeBillingAmountInvalid            = "billing.amount.invalid"
	CodeBillingAmountBreakdown          = "billing.amount.breakdown"
	CodeBillingInsuranceMethod          = "billing.insurance.method"
	CodeBillingInsuranceProvider        = "billing.insurance.provider"
	CodeBillingInsuranceProviderMissing = "billing.insurance.providerNotFound"
	CodeBillingInsuranceCoverage        = "billing.insurance.coverage"
	CodeBillingInsurancePolicy          = "billing.insurance.policy"
	CodeBillingInsuranceRequiredFlag    = "billing.insurance.requiredFlag"
	CodeInsuranceProviderExists         = "insuranceProvider.exists"

	CodeConsultationPatientRequired = "consultation.patient.required"
	CodeConsultationDoctorRequired  = "consultation.doctor.required"
	CodeConsultationPatientNotFound = "consultation.patient.notFound"
	CodeConsultationDoctorNotFound  = "consultation.doctor.notFound"
	CodeConsultationReasonRequired  = "validation.reasonForVisit.required"
	CodeConsultationNotFound        = "consultation.notFound"
	CodeConsultationForbidden       = "consultation.forbidden"
)
