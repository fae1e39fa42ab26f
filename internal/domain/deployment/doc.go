// Package deployment contains the core types of a customization deployment.
//
// It defines the resolved package descriptors (ProjectConfig), the
// authenticated Session, upload and publish records, the publication status
// tagged enum, the run state machine states and the error taxonomy shared by
// every deployment component.
package deployment
