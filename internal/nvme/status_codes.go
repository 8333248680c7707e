package nvme

import (
	"fmt"

	"github.com/binaryphile/nvme-logs/internal/structured"
)

type codeInfo struct {
	name string // symbolic, snake_case
	desc string
}

type codeTable map[uint8]codeInfo

func (t codeTable) name(code uint8) string {
	if info, ok := t[code]; ok {
		return info.name
	}
	return fmt.Sprintf("other(0x%02x)", code)
}

func (t codeTable) desc(code uint8) string {
	if info, ok := t[code]; ok {
		return info.desc
	}
	return fmt.Sprintf("unrecognized status code 0x%02x", code)
}

func (t codeTable) structured(code uint8) structured.Value {
	if info, ok := t[code]; ok {
		return structured.Text(info.name)
	}
	return structured.Tagged("other", uint64(code))
}

// GenericStatus is a status code under SCT 0.
type GenericStatus uint8

const (
	GenericSuccess                        GenericStatus = 0x00
	GenericInvalidCommandOpcode           GenericStatus = 0x01
	GenericInvalidFieldInCommand          GenericStatus = 0x02
	GenericCommandIDConflict              GenericStatus = 0x03
	GenericDataTransferError              GenericStatus = 0x04
	GenericAbortedPowerLoss               GenericStatus = 0x05
	GenericInternalError                  GenericStatus = 0x06
	GenericAbortRequested                 GenericStatus = 0x07
	GenericAbortedSQDeletion              GenericStatus = 0x08
	GenericAbortedFailedFused             GenericStatus = 0x09
	GenericAbortedMissingFused            GenericStatus = 0x0a
	GenericInvalidNamespaceOrFormat       GenericStatus = 0x0b
	GenericCommandSequenceError           GenericStatus = 0x0c
	GenericInvalidSGLSegmentDescriptor    GenericStatus = 0x0d
	GenericInvalidSGLDescriptorCount      GenericStatus = 0x0e
	GenericDataSGLLengthInvalid           GenericStatus = 0x0f
	GenericMetadataSGLLengthInvalid       GenericStatus = 0x10
	GenericSGLDescriptorTypeInvalid       GenericStatus = 0x11
	GenericInvalidUseOfCMB                GenericStatus = 0x12
	GenericPRPOffsetInvalid               GenericStatus = 0x13
	GenericAtomicWriteUnitExceeded        GenericStatus = 0x14
	GenericOperationDenied                GenericStatus = 0x15
	GenericSGLOffsetInvalid               GenericStatus = 0x16
	GenericHostIDInconsistentFormat       GenericStatus = 0x18
	GenericKeepAliveTimerExpired          GenericStatus = 0x19
	GenericKeepAliveTimeoutInvalid        GenericStatus = 0x1a
	GenericAbortedPreemptAndAbort         GenericStatus = 0x1b
	GenericSanitizeFailed                 GenericStatus = 0x1c
	GenericSanitizeInProgress             GenericStatus = 0x1d
	GenericSGLDataBlockGranularityInvalid GenericStatus = 0x1e
	GenericCommandNotSupportedForCMBQueue GenericStatus = 0x1f
	GenericNamespaceWriteProtected        GenericStatus = 0x20
	GenericCommandInterrupted             GenericStatus = 0x21
	GenericTransientTransportError        GenericStatus = 0x22

	GenericLBAOutOfRange       GenericStatus = 0x80
	GenericCapacityExceeded    GenericStatus = 0x81
	GenericNamespaceNotReady   GenericStatus = 0x82
	GenericReservationConflict GenericStatus = 0x83
	GenericFormatInProgress    GenericStatus = 0x84
)

var genericCodes = codeTable{
	0x00: {"success", "Successful Completion"},
	0x01: {"invalid_command_opcode", "Invalid Command Opcode"},
	0x02: {"invalid_field_in_command", "Invalid Field in Command"},
	0x03: {"command_id_conflict", "Command ID Conflict"},
	0x04: {"data_transfer_error", "Data Transfer Error"},
	0x05: {"aborted_power_loss", "Commands Aborted due to Power Loss Notification"},
	0x06: {"internal_error", "Internal Error"},
	0x07: {"abort_requested", "Command Abort Requested"},
	0x08: {"aborted_sq_deletion", "Command Aborted due to SQ Deletion"},
	0x09: {"aborted_failed_fused", "Command Aborted due to Failed Fused Command"},
	0x0a: {"aborted_missing_fused", "Command Aborted due to Missing Fused Command"},
	0x0b: {"invalid_namespace_or_format", "Invalid Namespace or Format"},
	0x0c: {"command_sequence_error", "Command Sequence Error"},
	0x0d: {"invalid_sgl_segment_descriptor", "Invalid SGL Segment Descriptor"},
	0x0e: {"invalid_sgl_descriptor_count", "Invalid Number of SGL Descriptors"},
	0x0f: {"data_sgl_length_invalid", "Data SGL Length Invalid"},
	0x10: {"metadata_sgl_length_invalid", "Metadata SGL Length Invalid"},
	0x11: {"sgl_descriptor_type_invalid", "SGL Descriptor Type Invalid"},
	0x12: {"invalid_use_of_cmb", "Invalid Use of Controller Memory Buffer"},
	0x13: {"prp_offset_invalid", "PRP Offset Invalid"},
	0x14: {"atomic_write_unit_exceeded", "Atomic Write Unit Exceeded"},
	0x15: {"operation_denied", "Operation Denied"},
	0x16: {"sgl_offset_invalid", "SGL Offset Invalid"},
	0x18: {"host_id_inconsistent_format", "Host Identifier Inconsistent Format"},
	0x19: {"keep_alive_timer_expired", "Keep Alive Timer Expired"},
	0x1a: {"keep_alive_timeout_invalid", "Keep Alive Timeout Invalid"},
	0x1b: {"aborted_preempt_and_abort", "Command Aborted due to Preempt and Abort"},
	0x1c: {"sanitize_failed", "Sanitize Failed"},
	0x1d: {"sanitize_in_progress", "Sanitize In Progress"},
	0x1e: {"sgl_data_block_granularity_invalid", "SGL Data Block Granularity Invalid"},
	0x1f: {"command_not_supported_for_cmb_queue", "Command Not Supported for Queue in CMB"},
	0x20: {"namespace_write_protected", "Namespace is Write Protected"},
	0x21: {"command_interrupted", "Command Interrupted"},
	0x22: {"transient_transport_error", "Transient Transport Error"},
	0x80: {"lba_out_of_range", "LBA Out of Range"},
	0x81: {"capacity_exceeded", "Capacity Exceeded"},
	0x82: {"namespace_not_ready", "Namespace Not Ready"},
	0x83: {"reservation_conflict", "Reservation Conflict"},
	0x84: {"format_in_progress", "Format In Progress"},
}

func (GenericStatus) Type() StatusCodeType { return SCTGeneric }
func (s GenericStatus) Raw() uint8         { return uint8(s) }
func (GenericStatus) isStatusCode()        {}

// IsOther reports a code with no entry in the generic table.
func (s GenericStatus) IsOther() bool {
	_, ok := genericCodes[uint8(s)]
	return !ok
}

func (s GenericStatus) String() string               { return genericCodes.name(uint8(s)) }
func (s GenericStatus) Description() string          { return genericCodes.desc(uint8(s)) }
func (s GenericStatus) Structured() structured.Value { return genericCodes.structured(uint8(s)) }

// CmdSpecificStatus is a status code under SCT 1.
type CmdSpecificStatus uint8

const (
	CmdCompletionQueueInvalid          CmdSpecificStatus = 0x00
	CmdInvalidQueueID                  CmdSpecificStatus = 0x01
	CmdInvalidQueueSize                CmdSpecificStatus = 0x02
	CmdAbortLimitExceeded              CmdSpecificStatus = 0x03
	CmdAsyncEventRequestLimitExceeded  CmdSpecificStatus = 0x05
	CmdInvalidFirmwareSlot             CmdSpecificStatus = 0x06
	CmdInvalidFirmwareImage            CmdSpecificStatus = 0x07
	CmdInvalidInterruptVector          CmdSpecificStatus = 0x08
	CmdInvalidLogPage                  CmdSpecificStatus = 0x09
	CmdInvalidFormat                   CmdSpecificStatus = 0x0a
	CmdFirmwareNeedsConventionalReset  CmdSpecificStatus = 0x0b
	CmdInvalidQueueDeletion            CmdSpecificStatus = 0x0c
	CmdFeatureNotSaveable              CmdSpecificStatus = 0x0d
	CmdFeatureNotChangeable            CmdSpecificStatus = 0x0e
	CmdFeatureNotNamespaceSpecific     CmdSpecificStatus = 0x0f
	CmdFirmwareNeedsSubsystemReset     CmdSpecificStatus = 0x10
	CmdFirmwareNeedsControllerReset    CmdSpecificStatus = 0x11
	CmdFirmwareNeedsMaxTimeViolation   CmdSpecificStatus = 0x12
	CmdFirmwareActivationProhibited    CmdSpecificStatus = 0x13
	CmdOverlappingRange                CmdSpecificStatus = 0x14
	CmdNamespaceInsufficientCapacity   CmdSpecificStatus = 0x15
	CmdNamespaceIDUnavailable          CmdSpecificStatus = 0x16
	CmdNamespaceAlreadyAttached        CmdSpecificStatus = 0x18
	CmdNamespaceIsPrivate              CmdSpecificStatus = 0x19
	CmdNamespaceNotAttached            CmdSpecificStatus = 0x1a
	CmdThinProvisioningNotSupported    CmdSpecificStatus = 0x1b
	CmdControllerListInvalid           CmdSpecificStatus = 0x1c
	CmdDeviceSelfTestInProgress        CmdSpecificStatus = 0x1d
	CmdBootPartitionWriteProhibited    CmdSpecificStatus = 0x1e
	CmdInvalidControllerID             CmdSpecificStatus = 0x1f
	CmdInvalidSecondaryControllerState CmdSpecificStatus = 0x20
	CmdInvalidControllerResourceCount  CmdSpecificStatus = 0x21
	CmdInvalidResourceID               CmdSpecificStatus = 0x22
	CmdSanitizeProhibitedWithPMR       CmdSpecificStatus = 0x23
	CmdANAGroupIDInvalid               CmdSpecificStatus = 0x24
	CmdANAAttachFailed                 CmdSpecificStatus = 0x25
	CmdConflictingAttributes           CmdSpecificStatus = 0x80
	CmdInvalidProtectionInfo           CmdSpecificStatus = 0x81
	CmdAttemptedWriteToReadOnlyRange   CmdSpecificStatus = 0x82
)

var cmdSpecificCodes = codeTable{
	0x00: {"completion_queue_invalid", "Completion Queue Invalid"},
	0x01: {"invalid_queue_id", "Invalid Queue Identifier"},
	0x02: {"invalid_queue_size", "Invalid Queue Size"},
	0x03: {"abort_limit_exceeded", "Abort Command Limit Exceeded"},
	0x05: {"async_event_request_limit_exceeded", "Asynchronous Event Request Limit Exceeded"},
	0x06: {"invalid_firmware_slot", "Invalid Firmware Slot"},
	0x07: {"invalid_firmware_image", "Invalid Firmware Image"},
	0x08: {"invalid_interrupt_vector", "Invalid Interrupt Vector"},
	0x09: {"invalid_log_page", "Invalid Log Page"},
	0x0a: {"invalid_format", "Invalid Format"},
	0x0b: {"firmware_needs_conventional_reset", "Firmware Activation Requires Conventional Reset"},
	0x0c: {"invalid_queue_deletion", "Invalid Queue Deletion"},
	0x0d: {"feature_not_saveable", "Feature Identifier Not Saveable"},
	0x0e: {"feature_not_changeable", "Feature Not Changeable"},
	0x0f: {"feature_not_namespace_specific", "Feature Not Namespace Specific"},
	0x10: {"firmware_needs_subsystem_reset", "Firmware Activation Requires NVM Subsystem Reset"},
	0x11: {"firmware_needs_controller_reset", "Firmware Activation Requires Controller Level Reset"},
	0x12: {"firmware_needs_max_time_violation", "Firmware Activation Requires Maximum Time Violation"},
	0x13: {"firmware_activation_prohibited", "Firmware Activation Prohibited"},
	0x14: {"overlapping_range", "Overlapping Range"},
	0x15: {"namespace_insufficient_capacity", "Namespace Insufficient Capacity"},
	0x16: {"namespace_id_unavailable", "Namespace Identifier Unavailable"},
	0x18: {"namespace_already_attached", "Namespace Already Attached"},
	0x19: {"namespace_is_private", "Namespace Is Private"},
	0x1a: {"namespace_not_attached", "Namespace Not Attached"},
	0x1b: {"thin_provisioning_not_supported", "Thin Provisioning Not Supported"},
	0x1c: {"controller_list_invalid", "Controller List Invalid"},
	0x1d: {"device_self_test_in_progress", "Device Self-test In Progress"},
	0x1e: {"boot_partition_write_prohibited", "Boot Partition Write Prohibited"},
	0x1f: {"invalid_controller_id", "Invalid Controller Identifier"},
	0x20: {"invalid_secondary_controller_state", "Invalid Secondary Controller State"},
	0x21: {"invalid_controller_resource_count", "Invalid Number of Controller Resources"},
	0x22: {"invalid_resource_id", "Invalid Resource Identifier"},
	0x23: {"sanitize_prohibited_with_pmr", "Sanitize Prohibited While Persistent Memory Region is Enabled"},
	0x24: {"ana_group_id_invalid", "ANA Group Identifier Invalid"},
	0x25: {"ana_attach_failed", "ANA Attach Failed"},
	0x80: {"conflicting_attributes", "Conflicting Attributes"},
	0x81: {"invalid_protection_info", "Invalid Protection Information"},
	0x82: {"attempted_write_to_read_only_range", "Attempted Write to Read Only Range"},
}

func (CmdSpecificStatus) Type() StatusCodeType { return SCTCommandSpecific }
func (s CmdSpecificStatus) Raw() uint8         { return uint8(s) }
func (CmdSpecificStatus) isStatusCode()        {}

// IsOther reports a code with no entry in the command specific table.
func (s CmdSpecificStatus) IsOther() bool {
	_, ok := cmdSpecificCodes[uint8(s)]
	return !ok
}

func (s CmdSpecificStatus) String() string               { return cmdSpecificCodes.name(uint8(s)) }
func (s CmdSpecificStatus) Description() string          { return cmdSpecificCodes.desc(uint8(s)) }
func (s CmdSpecificStatus) Structured() structured.Value { return cmdSpecificCodes.structured(uint8(s)) }

// MadIntegrityStatus is a status code under SCT 2.
type MadIntegrityStatus uint8

const (
	MediaWriteFault                MadIntegrityStatus = 0x80
	MediaUnrecoveredReadError      MadIntegrityStatus = 0x81
	MediaEndToEndGuardCheckError   MadIntegrityStatus = 0x82
	MediaEndToEndAppTagCheckError  MadIntegrityStatus = 0x83
	MediaEndToEndRefTagCheckError  MadIntegrityStatus = 0x84
	MediaCompareFailure            MadIntegrityStatus = 0x85
	MediaAccessDenied              MadIntegrityStatus = 0x86
	MediaDeallocatedOrUnwrittenLBA MadIntegrityStatus = 0x87
)

var madIntegrityCodes = codeTable{
	0x80: {"write_fault", "Write Fault"},
	0x81: {"unrecovered_read_error", "Unrecovered Read Error"},
	0x82: {"end_to_end_guard_check_error", "End-to-end Guard Check Error"},
	0x83: {"end_to_end_app_tag_check_error", "End-to-end Application Tag Check Error"},
	0x84: {"end_to_end_ref_tag_check_error", "End-to-end Reference Tag Check Error"},
	0x85: {"compare_failure", "Compare Failure"},
	0x86: {"access_denied", "Access Denied"},
	0x87: {"deallocated_or_unwritten_lba", "Deallocated or Unwritten Logical Block"},
}

func (MadIntegrityStatus) Type() StatusCodeType { return SCTMediaAndDataIntegrity }
func (s MadIntegrityStatus) Raw() uint8         { return uint8(s) }
func (MadIntegrityStatus) isStatusCode()        {}

// IsOther reports a code with no entry in the media and data integrity table.
func (s MadIntegrityStatus) IsOther() bool {
	_, ok := madIntegrityCodes[uint8(s)]
	return !ok
}

func (s MadIntegrityStatus) String() string               { return madIntegrityCodes.name(uint8(s)) }
func (s MadIntegrityStatus) Description() string          { return madIntegrityCodes.desc(uint8(s)) }
func (s MadIntegrityStatus) Structured() structured.Value { return madIntegrityCodes.structured(uint8(s)) }

// PathRelatedStatus is a status code under SCT 3.
type PathRelatedStatus uint8

const (
	PathInternalError          PathRelatedStatus = 0x00
	PathANAPersistentLoss      PathRelatedStatus = 0x01
	PathANAInaccessible        PathRelatedStatus = 0x02
	PathANATransition          PathRelatedStatus = 0x03
	PathControllerPathingError PathRelatedStatus = 0x60
	PathHostPathingError       PathRelatedStatus = 0x70
	PathAbortedByHost          PathRelatedStatus = 0x71
)

var pathRelatedCodes = codeTable{
	0x00: {"internal_path_error", "Internal Path Error"},
	0x01: {"ana_persistent_loss", "Asymmetric Access Persistent Loss"},
	0x02: {"ana_inaccessible", "Asymmetric Access Inaccessible"},
	0x03: {"ana_transition", "Asymmetric Access Transition"},
	0x60: {"controller_pathing_error", "Controller Pathing Error"},
	0x70: {"host_pathing_error", "Host Pathing Error"},
	0x71: {"aborted_by_host", "Command Aborted By Host"},
}

func (PathRelatedStatus) Type() StatusCodeType { return SCTPathRelated }
func (s PathRelatedStatus) Raw() uint8         { return uint8(s) }
func (PathRelatedStatus) isStatusCode()        {}

// IsOther reports a code with no entry in the path related table.
func (s PathRelatedStatus) IsOther() bool {
	_, ok := pathRelatedCodes[uint8(s)]
	return !ok
}

func (s PathRelatedStatus) String() string               { return pathRelatedCodes.name(uint8(s)) }
func (s PathRelatedStatus) Description() string          { return pathRelatedCodes.desc(uint8(s)) }
func (s PathRelatedStatus) Structured() structured.Value { return pathRelatedCodes.structured(uint8(s)) }
