// Package project loads a bam configuration together with its tree of plugin
// configurations and runs lifecycle methods (install, build, deploy and their
// post hooks) across that tree in a fixed order.
//
// For a root with plugins [A [A1 A2], B] the install lifecycle runs
//
//	A1.install A2.install A.install B.install root.install
//	B.postInstall A2.postInstall A1.postInstall A.postInstall root.postInstall
//
// The forward pass is a post-order walk in declaration order; the post pass
// mirrors it. Every hook completes before the next one starts.
package project
