// Package devices describes character device numbers as the kernel
// reports them in uevent files and as mknod(2) consumes them.
package devices
