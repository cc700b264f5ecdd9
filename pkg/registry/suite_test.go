/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package registry_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
	"github.com/instancefleet/scheduler/pkg/registry"
	"github.com/instancefleet/scheduler/pkg/store"
)

func TestRegistry(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Registry")
}

func instance(account, region string, service v1beta1.Service, id, schedule string) v1beta1.RegisteredInstance {
	return v1beta1.RegisteredInstance{
		Account: account, Region: region, Service: service, ResourceID: id, Schedule: schedule,
	}
}

var _ = Describe("FindBySchedulingTarget", func() {
	It("returns only the target's instances, ordered by sort key", func() {
		ctx := context.Background()
		r := registry.New(store.NewMemory[v1beta1.RegisteredInstance]())

		Expect(r.Upsert(ctx, instance("111", "us-east-1", v1beta1.ServiceEC2, "i-b", "biz-hours"))).To(Succeed())
		Expect(r.Upsert(ctx, instance("111", "us-east-1", v1beta1.ServiceEC2, "i-a", "biz-hours"))).To(Succeed())
		Expect(r.Upsert(ctx, instance("111", "us-west-2", v1beta1.ServiceEC2, "i-c", "biz-hours"))).To(Succeed())
		Expect(r.Upsert(ctx, instance("222", "us-east-1", v1beta1.ServiceEC2, "i-d", "biz-hours"))).To(Succeed())
		Expect(r.Upsert(ctx, instance("111", "us-east-1", v1beta1.ServiceRDSInstance, "db-1", "biz-hours"))).To(Succeed())

		got, err := r.FindBySchedulingTarget(ctx, "111", "us-east-1", v1beta1.ServiceEC2)
		Expect(err).ToNot(HaveOccurred())
		Expect(got).To(HaveLen(2))
		Expect(got[0].ResourceID).To(Equal("i-a"))
		Expect(got[1].ResourceID).To(Equal("i-b"))
	})

	It("is idempotent across repeated upserts of the same sighting", func() {
		ctx := context.Background()
		r := registry.New(store.NewMemory[v1beta1.RegisteredInstance]())
		i := instance("111", "us-east-1", v1beta1.ServiceEC2, "i-a", "biz-hours")
		Expect(r.Upsert(ctx, i)).To(Succeed())
		Expect(r.Upsert(ctx, i)).To(Succeed())

		got, err := r.FindBySchedulingTarget(ctx, "111", "us-east-1", v1beta1.ServiceEC2)
		Expect(err).ToNot(HaveOccurred())
		Expect(got).To(HaveLen(1))
	})

	It("forgets a deleted instance", func() {
		ctx := context.Background()
		r := registry.New(store.NewMemory[v1beta1.RegisteredInstance]())
		i := instance("111", "us-east-1", v1beta1.ServiceEC2, "i-a", "biz-hours")
		Expect(r.Upsert(ctx, i)).To(Succeed())
		Expect(r.Delete(ctx, i)).To(Succeed())

		got, err := r.FindBySchedulingTarget(ctx, "111", "us-east-1", v1beta1.ServiceEC2)
		Expect(err).ToNot(HaveOccurred())
		Expect(got).To(BeEmpty())
	})
})
